package collab

import (
	"encoding/json"
	"time"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outboundMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func outbound(msgType string, data any) outboundMessage {
	return outboundMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

type cursorUpdatePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type lockRequestPayload struct {
	ElementID string `json:"elementId"`
}

type lockResultPayload struct {
	ElementID      string  `json:"elementId"`
	Granted        bool    `json:"granted"`
	OwnerSessionID *string `json:"ownerSessionId"`
}

// lockChangedPayload carries the owner directly so clients never have to
// guess the locking collaborator from the presence roster.
type lockChangedPayload struct {
	ElementID      string  `json:"elementId"`
	OwnerSessionID *string `json:"ownerSessionId"`
}

type elementChangePayload struct {
	ElementID string `json:"elementId"`
	Summary   string `json:"summary"`
}

type canvasSyncPayload struct {
	Elements json.RawMessage `json:"elements"`
}

type snapshotCreatePayload struct {
	Elements json.RawMessage `json:"elements,omitempty"`
}

type snapshotRestorePayload struct {
	SnapshotID string `json:"snapshotId"`
}

type snapshotRestoredPayload struct {
	SnapshotID string          `json:"snapshotId"`
	Elements   json.RawMessage `json:"elements"`
}

type inviteGeneratePayload struct {
	PermissionLevel string `json:"permissionLevel"`
	TTLSeconds      int    `json:"ttlSeconds"`
}

type feedTailPayload struct {
	Limit int `json:"limit"`
}

type connectedPayload struct {
	Session collab.Session         `json:"session"`
	Roster  []collab.PresenceEntry `json:"roster"`
	Locks   []collab.ElementLock   `json:"locks"`
	Recent  []collab.ChangeEvent   `json:"recentEvents"`
}

func ownerOrNil(sessionID string) *string {
	if sessionID == "" {
		return nil
	}
	return &sessionID
}
