package lock

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// ErrNotOwner is returned when a session tries to release a lock held by
// someone else. The lock state is left untouched.
var ErrNotOwner = errors.New("lock held by another session")

// Notifier pushes lock transitions to other project members. An empty
// ownerSessionID means the element returned to the unlocked state.
type Notifier interface {
	LockChanged(projectID, elementID, ownerSessionID string)
}

// Manager is the sole source of truth for element locks. Each project has
// its own lock table guarded by its own mutex, so unrelated projects never
// contend.
type Manager struct {
	ttl    time.Duration
	notify Notifier

	mu       sync.RWMutex
	projects map[string]*lockTable
}

type lockTable struct {
	mu       sync.Mutex
	elements map[string]*collab.ElementLock
}

// NewManager creates a lock manager whose locks expire ttl after their
// last acquisition or renewal.
func NewManager(ttl time.Duration, notify Notifier) *Manager {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Manager{
		ttl:      ttl,
		notify:   notify,
		projects: make(map[string]*lockTable),
	}
}

func (m *Manager) table(projectID string) *lockTable {
	m.mu.RLock()
	t, ok := m.projects[projectID]
	m.mu.RUnlock()
	if ok {
		return t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok = m.projects[projectID]; ok {
		return t
	}
	t = &lockTable{elements: make(map[string]*collab.ElementLock)}
	m.projects[projectID] = t
	return t
}

// TryLock attempts to acquire the element for sessionID. The check-and-set
// runs as one critical section per project table, so for concurrent calls
// on the same element exactly one caller wins. Re-acquiring a lock the
// session already holds renews its TTL and reports granted.
func (m *Manager) TryLock(projectID, elementID, sessionID string) (granted bool, ownerSessionID string) {
	t := m.table(projectID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.elements[elementID]; ok {
		if l.OwnerSessionID != sessionID {
			return false, l.OwnerSessionID
		}
		l.AcquiredAt = time.Now().UTC()
		return true, sessionID
	}

	t.elements[elementID] = &collab.ElementLock{
		ElementID:      elementID,
		OwnerSessionID: sessionID,
		ProjectID:      projectID,
		AcquiredAt:     time.Now().UTC(),
	}
	if m.notify != nil {
		m.notify.LockChanged(projectID, elementID, sessionID)
	}
	return true, sessionID
}

// Unlock releases the element if sessionID owns it. Releasing an already
// unlocked element is a no-op; releasing someone else's lock fails with
// ErrNotOwner and changes nothing.
func (m *Manager) Unlock(projectID, elementID, sessionID string) error {
	t := m.table(projectID)

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.elements[elementID]
	if !ok {
		return nil
	}
	if l.OwnerSessionID != sessionID {
		return ErrNotOwner
	}

	delete(t.elements, elementID)
	if m.notify != nil {
		m.notify.LockChanged(projectID, elementID, "")
	}
	return nil
}

// Owner reports the current lock owner for an element, if any.
func (m *Manager) Owner(projectID, elementID string) (string, bool) {
	t := m.table(projectID)

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.elements[elementID]
	if !ok {
		return "", false
	}
	return l.OwnerSessionID, true
}

// Locks lists the project's current locks, for the initial state pushed to
// a freshly connected client.
func (m *Manager) Locks(projectID string) []collab.ElementLock {
	t := m.table(projectID)

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]collab.ElementLock, 0, len(t.elements))
	for _, l := range t.elements {
		out = append(out, *l)
	}
	return out
}

// ReleaseOwnedBy frees every lock the session holds in the project and
// returns the affected element ids. Called by the session registry as part
// of disconnect, so no departed user is left holding a lock.
func (m *Manager) ReleaseOwnedBy(projectID, sessionID string) []string {
	t := m.table(projectID)

	t.mu.Lock()
	var released []string
	for elementID, l := range t.elements {
		if l.OwnerSessionID == sessionID {
			delete(t.elements, elementID)
			released = append(released, elementID)
		}
	}
	t.mu.Unlock()

	if m.notify != nil {
		for _, elementID := range released {
			m.notify.LockChanged(projectID, elementID, "")
		}
	}
	return released
}

// ExpireStale releases every lock whose TTL elapsed without renewal, as of
// now. Returns the number of locks released. Crashed clients lose their
// locks here rather than holding them forever.
func (m *Manager) ExpireStale(now time.Time) int {
	m.mu.RLock()
	tables := make(map[string]*lockTable, len(m.projects))
	for projectID, t := range m.projects {
		tables[projectID] = t
	}
	m.mu.RUnlock()

	expired := 0
	for projectID, t := range tables {
		t.mu.Lock()
		var released []string
		for elementID, l := range t.elements {
			if now.Sub(l.AcquiredAt) > m.ttl {
				delete(t.elements, elementID)
				released = append(released, elementID)
			}
		}
		t.mu.Unlock()

		for _, elementID := range released {
			expired++
			log.Printf("[locks] expired stale lock project=%s element=%s", projectID, elementID)
			if m.notify != nil {
				m.notify.LockChanged(projectID, elementID, "")
			}
		}
	}
	return expired
}

// Run sweeps stale locks periodically until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.ExpireStale(now.UTC())
		}
	}
}
