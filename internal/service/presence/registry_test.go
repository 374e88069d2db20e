package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

type fakeLocks struct {
	mu       sync.Mutex
	released map[string][]string // sessionID -> elements
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{released: make(map[string][]string)}
}

func (f *fakeLocks) ReleaseOwnedBy(projectID, sessionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[sessionID] = append(f.released[sessionID], "note-1")
	return []string{"note-1"}
}

type fakeFeed struct {
	mu     sync.Mutex
	events []collab.ChangeEvent
}

func (f *fakeFeed) Append(event collab.ChangeEvent) collab.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return event
}

func (f *fakeFeed) kinds() []collab.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []collab.EventKind
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakePresenceNotifier struct {
	mu      sync.Mutex
	pushes  int
	rosters [][]collab.PresenceEntry
}

func (f *fakePresenceNotifier) PresenceChanged(projectID string, roster []collab.PresenceEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	f.rosters = append(f.rosters, roster)
}

func newTestRegistry() (*Registry, *fakeLocks, *fakeFeed, *fakePresenceNotifier) {
	locks := newFakeLocks()
	feed := &fakeFeed{}
	notify := &fakePresenceNotifier{}
	return NewRegistry(30*time.Second, locks, feed, notify), locks, feed, notify
}

func TestConnectAssignsStableColor(t *testing.T) {
	r, _, _, _ := newTestRegistry()

	first, err := r.Connect("p1", "user-1", "Noor", "conn-1")
	if err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	second, err := r.Connect("p1", "user-1", "Noor", "conn-2")
	if err != nil {
		t.Fatalf("Connect err: %v", err)
	}

	if first.ColorTag == "" {
		t.Fatal("expected a color tag")
	}
	if first.ColorTag != second.ColorTag {
		t.Fatalf("color must be stable across reconnects: %s vs %s", first.ColorTag, second.ColorTag)
	}
	if first.ID == second.ID {
		t.Fatal("each connection gets its own session id")
	}
}

func TestConnectRejectsDuplicateConnection(t *testing.T) {
	r, _, _, _ := newTestRegistry()

	if _, err := r.Connect("p1", "user-1", "Noor", "conn-1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	if _, err := r.Connect("p1", "user-2", "Sami", "conn-1"); err != ErrDuplicateSession {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestHeartbeatUnknownSessionIsNoop(t *testing.T) {
	r, _, _, _ := newTestRegistry()
	r.Heartbeat("missing") // must not panic or error
}

func TestDisconnectReleasesLocksAndAnnounces(t *testing.T) {
	r, locks, feed, notify := newTestRegistry()

	session, err := r.Connect("p1", "user-1", "Noor", "conn-1")
	if err != nil {
		t.Fatalf("Connect err: %v", err)
	}

	r.Disconnect(session.ID)

	if _, ok := r.Get(session.ID); ok {
		t.Fatal("session should be gone after disconnect")
	}

	locks.mu.Lock()
	released := locks.released[session.ID]
	locks.mu.Unlock()
	if len(released) == 0 {
		t.Fatal("disconnect must release the session's locks")
	}

	kinds := feed.kinds()
	if kinds[len(kinds)-1] != collab.EventUserLeft {
		t.Fatalf("expected user_left event, got %v", kinds)
	}

	notify.mu.Lock()
	pushes := notify.pushes
	notify.mu.Unlock()
	if pushes < 2 { // one for connect, one for disconnect
		t.Fatalf("expected presence pushed on connect and disconnect, got %d", pushes)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r, _, feed, _ := newTestRegistry()

	session, _ := r.Connect("p1", "user-1", "Noor", "conn-1")
	r.Disconnect(session.ID)
	r.Disconnect(session.ID)

	left := 0
	for _, k := range feed.kinds() {
		if k == collab.EventUserLeft {
			left++
		}
	}
	if left != 1 {
		t.Fatalf("expected exactly one user_left event, got %d", left)
	}
}

func TestListOnlineFiltersStaleSessions(t *testing.T) {
	locks := newFakeLocks()
	feed := &fakeFeed{}
	r := NewRegistry(50*time.Millisecond, locks, feed, nil)

	fresh, _ := r.Connect("p1", "user-1", "Noor", "conn-1")
	stale, _ := r.Connect("p1", "user-2", "Sami", "conn-2")

	// Age the second session past the threshold.
	r.mu.Lock()
	r.sessions[stale.ID].LastSeenAt = time.Now().UTC().Add(-time.Second)
	r.mu.Unlock()

	online := r.ListOnline("p1")
	if len(online) != 1 || online[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh session online, got %+v", online)
	}

	roster := r.Roster("p1")
	if len(roster) != 2 {
		t.Fatalf("roster should include offline members, got %d", len(roster))
	}
	for _, entry := range roster {
		if entry.SessionID == stale.ID && entry.Online {
			t.Fatal("stale session must be marked offline")
		}
	}
}

func TestReapStaleDisconnects(t *testing.T) {
	locks := newFakeLocks()
	feed := &fakeFeed{}
	r := NewRegistry(20*time.Millisecond, locks, feed, nil)

	session, _ := r.Connect("p1", "user-1", "Noor", "conn-1")

	r.mu.Lock()
	r.sessions[session.ID].LastSeenAt = time.Now().UTC().Add(-time.Second)
	r.mu.Unlock()

	if n := r.reapStale(time.Now().UTC()); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if _, ok := r.Get(session.ID); ok {
		t.Fatal("reaped session should be gone")
	}
}

func TestProjectIsolation(t *testing.T) {
	r, _, _, _ := newTestRegistry()

	r.Connect("p1", "user-1", "Noor", "conn-1")
	r.Connect("p2", "user-2", "Sami", "conn-2")

	if got := r.ListOnline("p1"); len(got) != 1 || got[0].UserID != "user-1" {
		t.Fatalf("unexpected p1 members: %+v", got)
	}
}
