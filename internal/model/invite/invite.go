package invite

import "time"

// Permission is the access level granted by an invite link.
type Permission string

const (
	PermissionViewer    Permission = "viewer"
	PermissionCommenter Permission = "commenter"
	PermissionEditor    Permission = "editor"
	PermissionAdmin     Permission = "admin"
)

var permissionRank = map[Permission]int{
	PermissionViewer:    0,
	PermissionCommenter: 1,
	PermissionEditor:    2,
	PermissionAdmin:     3,
}

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	_, ok := permissionRank[p]
	return ok
}

// AtLeast reports whether p grants everything min grants.
func (p Permission) AtLeast(min Permission) bool {
	return permissionRank[p] >= permissionRank[min]
}

// Link is a shareable project invite. Read-only after creation; usable any
// number of times until ExpiresAt.
type Link struct {
	Token           string     `json:"token"`
	URL             string     `json:"link"`
	ProjectID       string     `json:"projectId"`
	PermissionLevel Permission `json:"permissionLevel"`
	ExpiresAt       time.Time  `json:"expiresAt"`
}
