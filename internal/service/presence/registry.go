package presence

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// ErrDuplicateSession is returned when the same transport connection tries
// to register twice. Callers retry with a fresh connection id.
var ErrDuplicateSession = errors.New("connection already registered")

// LockReleaser frees every element lock a departing session holds.
type LockReleaser interface {
	ReleaseOwnedBy(projectID, sessionID string) []string
}

// FeedAppender records join/leave events in the project activity feed.
type FeedAppender interface {
	Append(event collab.ChangeEvent) collab.ChangeEvent
}

// Notifier pushes updated presence rosters to a project's members.
type Notifier interface {
	PresenceChanged(projectID string, roster []collab.PresenceEntry)
}

// colorPalette matches the collaborator color tags the board UI renders.
// A user's tag is derived from their id, so it survives reconnects.
var colorPalette = []string{
	"#2563eb", "#16a34a", "#d97706", "#dc2626",
	"#7c3aed", "#0891b2", "#db2777", "#65a30d",
}

// Registry tracks which sessions are connected to which project. It is the
// only component that emits presence deltas, so expiry and explicit
// disconnect cannot race into duplicate events.
type Registry struct {
	staleAfter time.Duration
	locks      LockReleaser
	feed       FeedAppender
	notify     Notifier

	mu       sync.RWMutex
	sessions map[string]*collab.Session       // sessionID -> session
	projects map[string]map[string]struct{}   // projectID -> sessionIDs
	conns    map[string]string                // connID -> sessionID
	connOf   map[string]string                // sessionID -> connID
}

// NewRegistry creates a registry treating sessions quieter than staleAfter
// as offline, and reaping them at twice that age.
func NewRegistry(staleAfter time.Duration, locks LockReleaser, feed FeedAppender, notify Notifier) *Registry {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Registry{
		staleAfter: staleAfter,
		locks:      locks,
		feed:       feed,
		notify:     notify,
		sessions:   make(map[string]*collab.Session),
		projects:   make(map[string]map[string]struct{}),
		conns:      make(map[string]string),
		connOf:     make(map[string]string),
	}
}

// ColorTag returns the deterministic color assigned to a user id.
func ColorTag(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}

// Connect registers a new session for the given transport connection and
// announces it to the rest of the project. Fails only if connID is already
// registered.
func (r *Registry) Connect(projectID, userID, displayName, connID string) (collab.Session, error) {
	now := time.Now().UTC()
	session := collab.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProjectID:   projectID,
		DisplayName: displayName,
		ColorTag:    ColorTag(userID),
		ConnectedAt: now,
		LastSeenAt:  now,
	}

	r.mu.Lock()
	if _, ok := r.conns[connID]; ok {
		r.mu.Unlock()
		return collab.Session{}, ErrDuplicateSession
	}
	r.sessions[session.ID] = &session
	members, ok := r.projects[projectID]
	if !ok {
		members = make(map[string]struct{})
		r.projects[projectID] = members
	}
	members[session.ID] = struct{}{}
	r.conns[connID] = session.ID
	r.connOf[session.ID] = connID
	r.mu.Unlock()

	if r.feed != nil {
		r.feed.Append(collab.ChangeEvent{
			ProjectID: projectID,
			SessionID: session.ID,
			Kind:      collab.EventUserJoined,
			Summary:   displayName + " joined the board",
		})
	}
	r.broadcastPresence(projectID)

	return session, nil
}

// Heartbeat refreshes the session's last-seen time. Unknown sessions are
// ignored, so a late heartbeat after disconnect is harmless.
func (r *Registry) Heartbeat(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.LastSeenAt = time.Now().UTC()
	}
}

// Get returns the session by id.
func (r *Registry) Get(sessionID string) (collab.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return collab.Session{}, false
	}
	return *s, true
}

// Disconnect removes the session, releases its element locks, records a
// user_left event and pushes the updated roster. Idempotent: disconnecting
// an unknown session does nothing, so a stale teardown can never fail or
// double-fire.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	session := *s
	delete(r.sessions, sessionID)
	if members, ok := r.projects[session.ProjectID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.projects, session.ProjectID)
		}
	}
	if connID, ok := r.connOf[sessionID]; ok {
		delete(r.conns, connID)
		delete(r.connOf, sessionID)
	}
	r.mu.Unlock()

	// Lock release happens before the presence push so no other member can
	// observe a departed user still holding a lock.
	if r.locks != nil {
		r.locks.ReleaseOwnedBy(session.ProjectID, sessionID)
	}
	if r.feed != nil {
		r.feed.Append(collab.ChangeEvent{
			ProjectID: session.ProjectID,
			SessionID: sessionID,
			Kind:      collab.EventUserLeft,
			Summary:   session.DisplayName + " left the board",
		})
	}
	r.broadcastPresence(session.ProjectID)
}

// ListOnline returns the project's sessions seen within the staleness
// threshold, oldest connection first.
func (r *Registry) ListOnline(projectID string) []collab.Session {
	cutoff := time.Now().UTC().Add(-r.staleAfter)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []collab.Session
	for sessionID := range r.projects[projectID] {
		s := r.sessions[sessionID]
		if s != nil && s.LastSeenAt.After(cutoff) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Roster returns every registered session for the project with its
// online/offline flag, oldest connection first.
func (r *Registry) Roster(projectID string) []collab.PresenceEntry {
	cutoff := time.Now().UTC().Add(-r.staleAfter)

	r.mu.RLock()
	sessions := make([]collab.Session, 0, len(r.projects[projectID]))
	for sessionID := range r.projects[projectID] {
		if s := r.sessions[sessionID]; s != nil {
			sessions = append(sessions, *s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt) })

	out := make([]collab.PresenceEntry, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, collab.PresenceEntry{
			SessionID:   s.ID,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			ColorTag:    s.ColorTag,
			Online:      s.LastSeenAt.After(cutoff),
		})
	}
	return out
}

func (r *Registry) broadcastPresence(projectID string) {
	if r.notify != nil {
		r.notify.PresenceChanged(projectID, r.Roster(projectID))
	}
}

// reapStale disconnects sessions that missed heartbeats for twice the
// staleness threshold, as of now. Returns the number reaped.
func (r *Registry) reapStale(now time.Time) int {
	cutoff := now.Add(-2 * r.staleAfter)

	r.mu.RLock()
	var stale []string
	for sessionID, s := range r.sessions {
		if s.LastSeenAt.Before(cutoff) {
			stale = append(stale, sessionID)
		}
	}
	r.mu.RUnlock()

	for _, sessionID := range stale {
		r.Disconnect(sessionID)
	}
	return len(stale)
}

// Run reaps timed-out sessions periodically until the context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.staleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.reapStale(now.UTC())
		}
	}
}
