package collab

import "time"

// CursorState is the last known pointer position for a session.
// Ephemeral: overwritten on every update, never queued or persisted.
type CursorState struct {
	SessionID string    `json:"sessionId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	UpdatedAt time.Time `json:"updatedAt"`
}
