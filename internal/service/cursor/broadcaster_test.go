package cursor

import (
	"sync"
	"testing"
	"time"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

type fakeSessions struct {
	known map[string]collab.Session
}

func (f *fakeSessions) Get(sessionID string) (collab.Session, bool) {
	s, ok := f.known[sessionID]
	return s, ok
}

type captureNotifier struct {
	mu    sync.Mutex
	moves []collab.CursorState
}

func (n *captureNotifier) CursorMoved(projectID string, cursor collab.CursorState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moves = append(n.moves, cursor)
}

func (n *captureNotifier) all() []collab.CursorState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]collab.CursorState(nil), n.moves...)
}

func testSessions() *fakeSessions {
	return &fakeSessions{known: map[string]collab.Session{
		"sess-a": {ID: "sess-a", ProjectID: "p1"},
	}}
}

func TestCoalescingSendsOnlyLatest(t *testing.T) {
	notify := &captureNotifier{}
	b := New(30*time.Millisecond, testSessions(), notify)

	// Four rapid updates inside one window.
	b.Update("sess-a", 1, 1)
	b.Update("sess-a", 2, 2)
	b.Update("sess-a", 3, 3)
	b.Update("sess-a", 4, 8)

	time.Sleep(80 * time.Millisecond)

	moves := notify.all()
	if len(moves) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(moves))
	}
	if moves[0].X != 4 || moves[0].Y != 8 {
		t.Fatalf("expected latest position (4,8), got (%v,%v)", moves[0].X, moves[0].Y)
	}
}

func TestSeparateWindowsBroadcastSeparately(t *testing.T) {
	notify := &captureNotifier{}
	b := New(10*time.Millisecond, testSessions(), notify)

	b.Update("sess-a", 1, 1)
	time.Sleep(40 * time.Millisecond)
	b.Update("sess-a", 2, 2)
	time.Sleep(40 * time.Millisecond)

	moves := notify.all()
	if len(moves) != 2 {
		t.Fatalf("expected two broadcasts, got %d", len(moves))
	}
	if !moves[0].UpdatedAt.Before(moves[1].UpdatedAt) && !moves[0].UpdatedAt.Equal(moves[1].UpdatedAt) {
		t.Fatal("broadcasts out of order for one session")
	}
}

func TestDelayedFlushNeverResendsOlderState(t *testing.T) {
	notify := &captureNotifier{}
	b := New(5*time.Millisecond, testSessions(), notify)

	b.Update("sess-a", 1, 1)
	time.Sleep(30 * time.Millisecond)
	b.Update("sess-a", 2, 2)
	time.Sleep(30 * time.Millisecond)

	// A straggler flush firing after the newer broadcast must send nothing.
	b.flush("sess-a")

	moves := notify.all()
	if len(moves) != 2 {
		t.Fatalf("expected two broadcasts, got %d", len(moves))
	}
	if moves[1].UpdatedAt.Before(moves[0].UpdatedAt) {
		t.Fatal("older cursor position sent after a newer one")
	}
	if moves[1].X != 2 || moves[1].Y != 2 {
		t.Fatalf("expected the latest position last, got %+v", moves[1])
	}
}

func TestUnknownSessionDropped(t *testing.T) {
	notify := &captureNotifier{}
	b := New(5*time.Millisecond, testSessions(), notify)

	b.Update("sess-ghost", 1, 1)
	time.Sleep(30 * time.Millisecond)

	if moves := notify.all(); len(moves) != 0 {
		t.Fatalf("expected unknown session dropped, got %d broadcasts", len(moves))
	}
}

func TestForgetClearsPending(t *testing.T) {
	notify := &captureNotifier{}
	b := New(20*time.Millisecond, testSessions(), notify)

	b.Update("sess-a", 1, 1)
	b.Forget("sess-a")
	time.Sleep(60 * time.Millisecond)

	if moves := notify.all(); len(moves) != 0 {
		t.Fatalf("expected no broadcast after Forget, got %d", len(moves))
	}
}
