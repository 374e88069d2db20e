package collab

import (
	"sync"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// Hub fans component events out to connected clients, one project room at
// a time. Messages for a project never reach another project's clients.
// It implements the Notifier interfaces of the presence, cursor, lock,
// feed and snapshot services.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.projectID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.projectID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.projectID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.projectID)
		}
	}
}

// broadcast enqueues the message for every client in the project except
// the excluded session. Each client's channel preserves FIFO order.
func (h *Hub) broadcast(projectID, excludeSessionID string, msg outboundMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[projectID] {
		if c.sessionID == excludeSessionID {
			continue
		}
		c.enqueue(msg)
	}
}

// PresenceChanged implements presence.Notifier.
func (h *Hub) PresenceChanged(projectID string, roster []collab.PresenceEntry) {
	h.broadcast(projectID, "", outbound("presence.update", roster))
}

// CursorMoved implements cursor.Notifier. The originating session is
// excluded; it does not need its own cursor echoed back.
func (h *Hub) CursorMoved(projectID string, cursor collab.CursorState) {
	h.broadcast(projectID, cursor.SessionID, outbound("cursor.moved", cursor))
}

// LockChanged implements lock.Notifier. The owner rides along directly so
// clients render "locked by X" without inferring the owner themselves.
func (h *Hub) LockChanged(projectID, elementID, ownerSessionID string) {
	h.broadcast(projectID, "", outbound("lock.changed", lockChangedPayload{
		ElementID:      elementID,
		OwnerSessionID: ownerOrNil(ownerSessionID),
	}))
}

// EventAppended implements feed.Notifier.
func (h *Hub) EventAppended(projectID string, event collab.ChangeEvent) {
	h.broadcast(projectID, "", outbound("feed.appended", event))
}

// SnapshotCreated implements snapshot.Notifier.
func (h *Hub) SnapshotCreated(projectID string, meta collab.Snapshot) {
	h.broadcast(projectID, "", outbound("snapshot.created", meta))
}
