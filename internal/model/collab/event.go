package collab

import "time"

// EventKind classifies a change-feed entry.
type EventKind string

const (
	EventElementAdded    EventKind = "element_added"
	EventElementMoved    EventKind = "element_moved"
	EventElementRestyled EventKind = "element_restyled"
	EventCommentAdded    EventKind = "comment_added"
	EventUserJoined      EventKind = "user_joined"
	EventUserLeft        EventKind = "user_left"
	EventProjectSaved    EventKind = "project_saved"
)

// ChangeEvent is one immutable entry in a project's activity feed.
// Seq is assigned by the feed and never re-used; it breaks ties between
// events sharing the same OccurredAt.
type ChangeEvent struct {
	ID         string    `json:"eventId"`
	ProjectID  string    `json:"projectId"`
	SessionID  string    `json:"sessionId"`
	Kind       EventKind `json:"kind"`
	ElementID  string    `json:"elementId,omitempty"`
	Seq        uint64    `json:"seq"`
	OccurredAt time.Time `json:"occurredAt"`
	Summary    string    `json:"summary"`
}
