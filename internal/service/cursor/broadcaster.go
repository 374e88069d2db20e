package cursor

import (
	"sync"
	"time"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// SessionSource resolves a session id to its session. The broadcaster
// silently drops updates from sessions it cannot resolve.
type SessionSource interface {
	Get(sessionID string) (collab.Session, bool)
}

// Notifier fans a cursor position out to the session's project peers.
type Notifier interface {
	CursorMoved(projectID string, cursor collab.CursorState)
}

// Broadcaster coalesces high-frequency cursor updates: within one window
// per session only the latest position is broadcast, bounding fan-out
// bandwidth under fast mouse movement without any queue. A session's
// stream stays monotonic because flushes always send the newest state.
type Broadcaster struct {
	window   time.Duration
	sessions SessionSource
	notify   Notifier

	mu      sync.Mutex
	pending map[string]*pendingCursor
}

type pendingCursor struct {
	projectID string
	latest    collab.CursorState
	lastSent  time.Time
	armed     bool
}

// New creates a broadcaster coalescing updates inside the given window.
func New(window time.Duration, sessions SessionSource, notify Notifier) *Broadcaster {
	if window <= 0 {
		window = 33 * time.Millisecond
	}
	return &Broadcaster{
		window:   window,
		sessions: sessions,
		notify:   notify,
		pending:  make(map[string]*pendingCursor),
	}
}

// Update records the session's newest pointer position and schedules a
// broadcast at the end of the current coalescing window. Updates from
// unknown or expired sessions are dropped without error: cursor loss is
// not a user-visible failure.
func (b *Broadcaster) Update(sessionID string, x, y float64) {
	session, ok := b.sessions.Get(sessionID)
	if !ok {
		return
	}

	state := collab.CursorState{
		SessionID: sessionID,
		X:         x,
		Y:         y,
		UpdatedAt: time.Now().UTC(),
	}

	b.mu.Lock()
	p, ok := b.pending[sessionID]
	if !ok {
		p = &pendingCursor{projectID: session.ProjectID}
		b.pending[sessionID] = p
	}
	if state.UpdatedAt.Before(p.latest.UpdatedAt) {
		b.mu.Unlock()
		return
	}
	p.latest = state
	arm := !p.armed
	p.armed = true
	b.mu.Unlock()

	if arm {
		time.AfterFunc(b.window, func() { b.flush(sessionID) })
	}
}

// flush broadcasts the session's newest state. The notify call runs under
// b.mu so broadcast order matches lastSent order; a delayed flush racing a
// newer one finds nothing newer than lastSent and sends nothing.
func (b *Broadcaster) flush(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[sessionID]
	if !ok {
		return
	}
	p.armed = false
	if !p.latest.UpdatedAt.After(p.lastSent) {
		return
	}
	p.lastSent = p.latest.UpdatedAt

	if b.notify != nil {
		b.notify.CursorMoved(p.projectID, p.latest)
	}
}

// Forget drops the session's cursor state. Called on disconnect; a flush
// already in flight sends nothing afterwards.
func (b *Broadcaster) Forget(sessionID string) {
	b.mu.Lock()
	delete(b.pending, sessionID)
	b.mu.Unlock()
}
