package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// Notifier pushes appended events to connected project members.
type Notifier interface {
	EventAppended(projectID string, event collab.ChangeEvent)
}

// Feed keeps a bounded, totally ordered log of recent change events per
// project. Ring-buffer semantics: once a project exceeds the cap the oldest
// event is discarded, not archived.
type Feed struct {
	cap    int
	notify Notifier

	mu       sync.RWMutex
	projects map[string]*projectFeed
}

type projectFeed struct {
	mu     sync.Mutex
	seq    uint64
	events []collab.ChangeEvent
}

// New creates a feed retaining at most cap events per project.
func New(cap int, notify Notifier) *Feed {
	if cap <= 0 {
		cap = 20
	}
	return &Feed{
		cap:      cap,
		notify:   notify,
		projects: make(map[string]*projectFeed),
	}
}

func (f *Feed) project(projectID string) *projectFeed {
	f.mu.RLock()
	p, ok := f.projects[projectID]
	f.mu.RUnlock()
	if ok {
		return p
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok = f.projects[projectID]; ok {
		return p
	}
	p = &projectFeed{events: make([]collab.ChangeEvent, 0, f.cap+1)}
	f.projects[projectID] = p
	return p
}

// Append stamps the event with an id, timestamp and the next per-project
// sequence number, stores it, evicts the oldest entry past the cap, and
// returns the stamped event.
func (f *Feed) Append(event collab.ChangeEvent) collab.ChangeEvent {
	p := f.project(event.ProjectID)

	p.mu.Lock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	p.seq++
	event.Seq = p.seq

	p.events = append(p.events, event)
	if len(p.events) > f.cap {
		p.events = append(p.events[:0:0], p.events[len(p.events)-f.cap:]...)
	}
	p.mu.Unlock()

	if f.notify != nil {
		f.notify.EventAppended(event.ProjectID, event)
	}
	return event
}

// Tail returns up to limit of the most recent events, newest first. A
// non-positive limit means the full retained window.
func (f *Feed) Tail(projectID string, limit int) []collab.ChangeEvent {
	p := f.project(projectID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || limit > len(p.events) {
		limit = len(p.events)
	}

	out := make([]collab.ChangeEvent, 0, limit)
	for i := len(p.events) - 1; i >= len(p.events)-limit; i-- {
		out = append(out, p.events[i])
	}
	return out
}
