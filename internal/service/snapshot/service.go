package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// ErrNoCanvasState is returned when a snapshot is requested without
// elements and no client has synced canvas state for the project yet.
var ErrNoCanvasState = errors.New("no canvas state to snapshot")

// AutosaveAuthor marks snapshots taken by the periodic scheduler.
const AutosaveAuthor = "autosave"

// Notifier announces new snapshot metadata to the project's members.
type Notifier interface {
	SnapshotCreated(projectID string, meta collab.Snapshot)
}

// FeedAppender records project_saved events in the activity feed.
type FeedAppender interface {
	Append(event collab.ChangeEvent) collab.ChangeEvent
}

// Service creates and restores canvas snapshots. It also tracks the last
// synced element set per project so the periodic scheduler can snapshot
// without a client round-trip.
type Service struct {
	store    Store
	interval time.Duration
	feed     FeedAppender
	notify   Notifier

	mu       sync.Mutex
	canvases map[string]*canvasState
}

type canvasState struct {
	elements json.RawMessage
	changes  int // edits since the last snapshot
	dirty    bool
}

// NewService wraps the given store. A non-positive interval disables the
// autosave scheduler.
func NewService(store Store, interval time.Duration, feed FeedAppender, notify Notifier) *Service {
	return &Service{
		store:    store,
		interval: interval,
		feed:     feed,
		notify:   notify,
		canvases: make(map[string]*canvasState),
	}
}

func (s *Service) canvas(projectID string) *canvasState {
	c, ok := s.canvases[projectID]
	if !ok {
		c = &canvasState{}
		s.canvases[projectID] = c
	}
	return c
}

// SyncCanvas records the project's current element set as pushed by a
// client. This is what the autosave scheduler captures.
func (s *Service) SyncCanvas(projectID string, elements json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvas(projectID)
	c.elements = append(json.RawMessage(nil), elements...)
	c.dirty = true
}

// NoteChange bumps the project's edit counter, reported as ChangeCount on
// the next snapshot.
func (s *Service) NoteChange(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.canvas(projectID)
	c.changes++
	c.dirty = true
}

// Create stores an immutable snapshot and announces it. With nil elements
// the last synced canvas state is captured instead. Creation cannot
// conflict: every snapshot is independent.
func (s *Service) Create(ctx context.Context, projectID string, elements json.RawMessage, createdBy string) (collab.Snapshot, error) {
	s.mu.Lock()
	c := s.canvas(projectID)
	if elements == nil {
		elements = c.elements
	} else {
		c.elements = append(json.RawMessage(nil), elements...)
	}
	changes := c.changes
	s.mu.Unlock()

	if elements == nil {
		return collab.Snapshot{}, ErrNoCanvasState
	}

	snap := collab.Snapshot{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
		Elements:    append(json.RawMessage(nil), elements...),
		ChangeCount: changes,
		SizeBytes:   len(elements),
	}

	if err := s.store.Save(ctx, snap); err != nil {
		return collab.Snapshot{}, err
	}

	// Reset only after the save succeeded: a failed save keeps the edit
	// count and dirty flag so the autosave sweep retries. Edits recorded
	// while the save was in flight stay pending.
	s.mu.Lock()
	c.changes -= changes
	c.dirty = c.changes > 0
	s.mu.Unlock()

	if s.feed != nil {
		s.feed.Append(collab.ChangeEvent{
			ProjectID: projectID,
			SessionID: createdBy,
			Kind:      collab.EventProjectSaved,
			Summary:   "board version saved",
		})
	}
	if s.notify != nil {
		s.notify.SnapshotCreated(projectID, snap.Meta())
	}
	return snap, nil
}

// List returns the project's snapshot metadata, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]collab.Snapshot, error) {
	return s.store.List(ctx, projectID)
}

// Restore returns the snapshot's element payload unchanged. It never
// mutates the snapshot and never captures the pre-restore state; callers
// wanting that safety snapshot first.
func (s *Service) Restore(ctx context.Context, snapshotID string) (json.RawMessage, error) {
	snap, err := s.store.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return snap.Elements, nil
}

// Run snapshots dirty projects on the configured interval until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autosave(ctx)
		}
	}
}

func (s *Service) autosave(ctx context.Context) {
	s.mu.Lock()
	var due []string
	for projectID, c := range s.canvases {
		if c.dirty && c.elements != nil {
			due = append(due, projectID)
		}
	}
	s.mu.Unlock()

	for _, projectID := range due {
		if _, err := s.Create(ctx, projectID, nil, AutosaveAuthor); err != nil {
			log.Printf("[snapshots] autosave failed project=%s: %v", projectID, err)
		}
	}
}
