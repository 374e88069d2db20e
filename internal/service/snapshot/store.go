package snapshot

import (
	"context"
	"errors"
	"sync"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// ErrSnapshotNotFound is returned when a snapshot id is unknown or was
// already evicted by the retention policy.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store persists immutable snapshots. Implementations enforce the
// per-project retention cap themselves, evicting oldest first on Save.
type Store interface {
	Save(ctx context.Context, snap collab.Snapshot) error
	// List returns snapshot metadata only, newest first.
	List(ctx context.Context, projectID string) ([]collab.Snapshot, error)
	// Get returns the full snapshot including its element payload.
	Get(ctx context.Context, snapshotID string) (collab.Snapshot, error)
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	cap int

	mu        sync.RWMutex
	byID      map[string]collab.Snapshot
	byProject map[string][]string // snapshot ids, oldest first
}

// NewMemoryStore creates an in-memory store retaining at most cap
// snapshots per project.
func NewMemoryStore(cap int) *MemoryStore {
	if cap <= 0 {
		cap = 50
	}
	return &MemoryStore{
		cap:       cap,
		byID:      make(map[string]collab.Snapshot),
		byProject: make(map[string][]string),
	}
}

// Save stores the snapshot, evicting the project's oldest one past the cap.
func (s *MemoryStore) Save(_ context.Context, snap collab.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[snap.ID] = snap
	ids := append(s.byProject[snap.ProjectID], snap.ID)
	if len(ids) > s.cap {
		delete(s.byID, ids[0])
		ids = append(ids[:0:0], ids[1:]...)
	}
	s.byProject[snap.ProjectID] = ids
	return nil
}

// List returns the project's snapshot metadata, newest first.
func (s *MemoryStore) List(_ context.Context, projectID string) ([]collab.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byProject[projectID]
	out := make([]collab.Snapshot, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.byID[ids[i]].Meta())
	}
	return out, nil
}

// Get returns the full snapshot by id.
func (s *MemoryStore) Get(_ context.Context, snapshotID string) (collab.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.byID[snapshotID]
	if !ok {
		return collab.Snapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}
