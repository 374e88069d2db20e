package collab

import "time"

// ElementLock is an exclusive, time-bounded claim on one canvas element.
// At most one lock exists per element at any time.
type ElementLock struct {
	ElementID      string    `json:"elementId"`
	OwnerSessionID string    `json:"ownerSessionId"`
	ProjectID      string    `json:"projectId"`
	AcquiredAt     time.Time `json:"acquiredAt"`
}
