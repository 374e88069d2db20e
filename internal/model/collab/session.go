package collab

import "time"

// Session is one live editor connection to a project board.
type Session struct {
	ID          string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	ProjectID   string    `json:"projectId"`
	DisplayName string    `json:"displayName"`
	ColorTag    string    `json:"colorTag"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// PresenceEntry is the roster line pushed to clients on every
// presence change.
type PresenceEntry struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ColorTag    string `json:"colorTag"`
	Online      bool   `json:"online"`
}
