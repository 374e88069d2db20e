package feed

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

type countingNotifier struct {
	mu     sync.Mutex
	events []collab.ChangeEvent
}

func (n *countingNotifier) EventAppended(projectID string, event collab.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func TestAppendStampsSequenceAndID(t *testing.T) {
	f := New(20, nil)

	first := f.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventElementAdded})
	second := f.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventElementMoved})

	if first.ID == "" || second.ID == "" {
		t.Fatal("expected event ids assigned")
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if first.OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt stamped")
	}
}

func TestRetentionEvictsOldestFirst(t *testing.T) {
	f := New(20, nil)

	for i := 1; i <= 25; i++ {
		f.Append(collab.ChangeEvent{
			ProjectID: "p1",
			Kind:      collab.EventElementMoved,
			Summary:   fmt.Sprintf("edit %d", i),
		})
	}

	tail := f.Tail("p1", 20)
	if len(tail) != 20 {
		t.Fatalf("expected 20 retained events, got %d", len(tail))
	}

	// Newest first: seq 25 down to 6; events 1-5 evicted.
	if tail[0].Seq != 25 {
		t.Fatalf("expected newest seq 25 first, got %d", tail[0].Seq)
	}
	if tail[len(tail)-1].Seq != 6 {
		t.Fatalf("expected oldest survivor seq 6, got %d", tail[len(tail)-1].Seq)
	}
	for i := 1; i < len(tail); i++ {
		if tail[i].Seq != tail[i-1].Seq-1 {
			t.Fatalf("tail not in descending seq order at %d: %v then %v", i, tail[i-1].Seq, tail[i].Seq)
		}
	}
}

func TestTailLimit(t *testing.T) {
	f := New(20, nil)

	for i := 0; i < 10; i++ {
		f.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventCommentAdded})
	}

	if got := len(f.Tail("p1", 3)); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	if got := len(f.Tail("p1", 0)); got != 10 {
		t.Fatalf("expected full window of 10, got %d", got)
	}
	if got := len(f.Tail("p1", 50)); got != 10 {
		t.Fatalf("limit beyond size should return all 10, got %d", got)
	}
}

func TestProjectsDoNotShareFeeds(t *testing.T) {
	f := New(20, nil)

	f.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventUserJoined})
	f.Append(collab.ChangeEvent{ProjectID: "p2", Kind: collab.EventUserJoined})

	if got := f.Tail("p1", 0); len(got) != 1 || got[0].ProjectID != "p1" {
		t.Fatalf("unexpected p1 tail: %+v", got)
	}
	if e := f.Append(collab.ChangeEvent{ProjectID: "p2", Kind: collab.EventUserLeft}); e.Seq != 2 {
		t.Fatalf("p2 sequence must be independent, got seq %d", e.Seq)
	}
}

func TestAppendNotifies(t *testing.T) {
	notify := &countingNotifier{}
	f := New(20, notify)

	f.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventProjectSaved})

	notify.mu.Lock()
	defer notify.mu.Unlock()
	if len(notify.events) != 1 || notify.events[0].Kind != collab.EventProjectSaved {
		t.Fatalf("expected one project_saved notification, got %+v", notify.events)
	}
}
