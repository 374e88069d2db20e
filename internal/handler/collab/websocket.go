package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
	"github.com/lawha-app/lawha/backend/internal/service/cursor"
	"github.com/lawha-app/lawha/backend/internal/service/feed"
	inviteservice "github.com/lawha-app/lawha/backend/internal/service/invite"
	"github.com/lawha-app/lawha/backend/internal/service/lock"
	"github.com/lawha-app/lawha/backend/internal/service/presence"
	"github.com/lawha-app/lawha/backend/internal/service/snapshot"
)

// Handler terminates one websocket per client and multiplexes it onto the
// presence, cursor, lock, feed and snapshot services.
type Handler struct {
	hub       *Hub
	registry  *presence.Registry
	cursors   *cursor.Broadcaster
	locks     *lock.Manager
	feed      *feed.Feed
	snapshots *snapshot.Service
	invites   *inviteservice.Service
	upgrader  websocket.Upgrader
}

// NewHandler wires the gateway to its components.
func NewHandler(hub *Hub, registry *presence.Registry, cursors *cursor.Broadcaster, locks *lock.Manager, feedSvc *feed.Feed, snapshots *snapshot.Service, invites *inviteservice.Service) *Handler {
	return &Handler{
		hub:       hub,
		registry:  registry,
		cursors:   cursors,
		locks:     locks,
		feed:      feedSvc,
		snapshots: snapshots,
		invites:   invites,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{projectID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		http.Error(w, "projectID is required", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = userID
	}

	// Joining through an invite link binds the token's permission level;
	// otherwise the project's own members connect as editors.
	permission := invitemodel.PermissionEditor
	if token := r.URL.Query().Get("invite"); token != "" {
		link, err := h.invites.Validate(token)
		if err != nil {
			http.Error(w, "invalid or expired invite", http.StatusForbidden)
			return
		}
		if link.ProjectID != projectID {
			http.Error(w, "invite is for a different project", http.StatusForbidden)
			return
		}
		permission = link.PermissionLevel
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	session, err := h.registry.Connect(projectID, userID, displayName, connID)
	if errors.Is(err, presence.ErrDuplicateSession) {
		// Rare race on connection ids; the client retries with backoff.
		conn.WriteJSON(outbound("error", map[string]string{"message": "duplicate session, retry"}))
		conn.Close()
		return
	}

	client := newClient(conn, session.ID, projectID, permission)
	h.hub.add(client)

	log.Printf("[gateway] connected project=%s session=%s user=%s", projectID, session.ID, userID)

	go client.writePump()

	client.enqueue(outbound("connected", connectedPayload{
		Session: session,
		Roster:  h.registry.Roster(projectID),
		Locks:   h.locks.Locks(projectID),
		Recent:  h.feed.Tail(projectID, 0),
	}))

	h.readPump(r.Context(), client)
	h.teardown(client)
}

// readPump processes inbound messages until the socket drops. The read
// deadline is refreshed by both pongs and messages.
func (h *Handler) readPump(ctx context.Context, c *Client) {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.registry.Heartbeat(c.sessionID)
		return nil
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[gateway] read error session=%s: %v", c.sessionID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, c, &msg)
	}
}

// teardown runs exactly once per client. Connection loss is the only
// cancellation signal: locks are released and presence updated before the
// disconnect is complete, so no peer observes a ghost lock. Each socket
// owns its own session id and Disconnect is idempotent, so a stale
// socket's teardown can only ever remove its own session, never a
// successor's.
func (h *Handler) teardown(c *Client) {
	c.close()
	h.hub.remove(c)
	h.cursors.Forget(c.sessionID)
	h.registry.Disconnect(c.sessionID)
	log.Printf("[gateway] disconnected project=%s session=%s", c.projectID, c.sessionID)
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg *inboundMessage) {
	switch msg.Type {
	case "heartbeat":
		h.registry.Heartbeat(c.sessionID)
	case "cursor.update":
		h.handleCursorUpdate(c, msg.Data)
	case "lock.try":
		h.handleLockTry(c, msg.Data)
	case "lock.release":
		h.handleLockRelease(c, msg.Data)
	case "element.add":
		h.handleElementChange(c, msg.Data, collab.EventElementAdded)
	case "element.move":
		h.handleElementChange(c, msg.Data, collab.EventElementMoved)
	case "element.restyle":
		h.handleElementChange(c, msg.Data, collab.EventElementRestyled)
	case "comment.add":
		h.handleCommentAdd(c, msg.Data)
	case "canvas.sync":
		h.handleCanvasSync(c, msg.Data)
	case "feed.tail":
		h.handleFeedTail(c, msg.Data)
	case "snapshot.create":
		h.handleSnapshotCreate(ctx, c, msg.Data)
	case "snapshot.list":
		h.handleSnapshotList(ctx, c)
	case "snapshot.restore":
		h.handleSnapshotRestore(ctx, c, msg.Data)
	case "invite.generate":
		h.handleInviteGenerate(c, msg.Data)
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

// require rejects the request unless the client's invite level grants at
// least min. The rejection goes only to the originating client.
func (h *Handler) require(c *Client, min invitemodel.Permission) bool {
	if c.permission.AtLeast(min) {
		return true
	}
	h.sendError(c, "insufficient permission")
	return false
}

func (h *Handler) handleCursorUpdate(c *Client, raw json.RawMessage) {
	var payload cursorUpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(c, "invalid cursor payload")
		return
	}
	h.cursors.Update(c.sessionID, payload.X, payload.Y)
}

func (h *Handler) handleLockTry(c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload lockRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ElementID == "" {
		h.sendError(c, "invalid lock payload")
		return
	}

	granted, owner := h.locks.TryLock(c.projectID, payload.ElementID, c.sessionID)
	c.enqueue(outbound("lock.result", lockResultPayload{
		ElementID:      payload.ElementID,
		Granted:        granted,
		OwnerSessionID: ownerOrNil(owner),
	}))
}

func (h *Handler) handleLockRelease(c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload lockRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ElementID == "" {
		h.sendError(c, "invalid lock payload")
		return
	}

	if err := h.locks.Unlock(c.projectID, payload.ElementID, c.sessionID); err != nil {
		log.Printf("[gateway] unlock rejected project=%s element=%s session=%s: %v", c.projectID, payload.ElementID, c.sessionID, err)
		h.sendError(c, "not the lock owner")
	}
}

func (h *Handler) handleElementChange(c *Client, raw json.RawMessage, kind collab.EventKind) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload elementChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ElementID == "" {
		h.sendError(c, "invalid element payload")
		return
	}

	h.feed.Append(collab.ChangeEvent{
		ProjectID: c.projectID,
		SessionID: c.sessionID,
		Kind:      kind,
		ElementID: payload.ElementID,
		Summary:   payload.Summary,
	})
	h.snapshots.NoteChange(c.projectID)
}

func (h *Handler) handleCommentAdd(c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionCommenter) {
		return
	}
	var payload elementChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(c, "invalid comment payload")
		return
	}

	h.feed.Append(collab.ChangeEvent{
		ProjectID: c.projectID,
		SessionID: c.sessionID,
		Kind:      collab.EventCommentAdded,
		ElementID: payload.ElementID,
		Summary:   payload.Summary,
	})
}

func (h *Handler) handleCanvasSync(c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload canvasSyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Elements == nil {
		h.sendError(c, "invalid canvas payload")
		return
	}
	h.snapshots.SyncCanvas(c.projectID, payload.Elements)
}

func (h *Handler) handleFeedTail(c *Client, raw json.RawMessage) {
	var payload feedTailPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			h.sendError(c, "invalid feed payload")
			return
		}
	}
	c.enqueue(outbound("feed.tail", h.feed.Tail(c.projectID, payload.Limit)))
}

func (h *Handler) handleSnapshotCreate(ctx context.Context, c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload snapshotCreatePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			h.sendError(c, "invalid snapshot payload")
			return
		}
	}

	if _, err := h.snapshots.Create(ctx, c.projectID, payload.Elements, c.sessionID); err != nil {
		log.Printf("[gateway] snapshot create failed project=%s: %v", c.projectID, err)
		h.sendError(c, "snapshot failed")
	}
}

func (h *Handler) handleSnapshotList(ctx context.Context, c *Client) {
	snaps, err := h.snapshots.List(ctx, c.projectID)
	if err != nil {
		log.Printf("[gateway] snapshot list failed project=%s: %v", c.projectID, err)
		h.sendError(c, "snapshot listing failed")
		return
	}
	c.enqueue(outbound("snapshot.list", snaps))
}

func (h *Handler) handleSnapshotRestore(ctx context.Context, c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionEditor) {
		return
	}
	var payload snapshotRestorePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SnapshotID == "" {
		h.sendError(c, "invalid restore payload")
		return
	}

	elements, err := h.snapshots.Restore(ctx, payload.SnapshotID)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			h.sendError(c, "snapshot not found")
			return
		}
		log.Printf("[gateway] snapshot restore failed project=%s: %v", c.projectID, err)
		h.sendError(c, "restore failed")
		return
	}
	c.enqueue(outbound("snapshot.restored", snapshotRestoredPayload{
		SnapshotID: payload.SnapshotID,
		Elements:   elements,
	}))
}

func (h *Handler) handleInviteGenerate(c *Client, raw json.RawMessage) {
	if !h.require(c, invitemodel.PermissionAdmin) {
		return
	}
	var payload inviteGeneratePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(c, "invalid invite payload")
		return
	}

	link, err := h.invites.Generate(c.projectID, invitemodel.Permission(payload.PermissionLevel), time.Duration(payload.TTLSeconds)*time.Second)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	c.enqueue(outbound("invite.created", link))
}

// sendError reports a failure to the originating client only; component
// errors are never broadcast.
func (h *Handler) sendError(c *Client, message string) {
	c.enqueue(outbound("error", map[string]string{"message": message}))
}
