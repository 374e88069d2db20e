package collab

import (
	"encoding/json"
	"time"
)

// Snapshot is an immutable capture of full canvas state. Elements is the
// raw JSON element array exactly as the client supplied it; restore hands
// it back byte for byte.
type Snapshot struct {
	ID          string          `json:"snapshotId"`
	ProjectID   string          `json:"projectId"`
	CreatedAt   time.Time       `json:"createdAt"`
	CreatedBy   string          `json:"createdBy"`
	Elements    json.RawMessage `json:"elements,omitempty"`
	ChangeCount int             `json:"changeCount"`
	SizeBytes   int             `json:"sizeBytes"`
}

// Meta returns the snapshot stripped of its element payload, keeping
// listings cheap.
func (s Snapshot) Meta() Snapshot {
	meta := s
	meta.Elements = nil
	return meta
}
