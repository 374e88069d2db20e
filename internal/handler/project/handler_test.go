package project

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
	"github.com/lawha-app/lawha/backend/internal/service/feed"
	inviteservice "github.com/lawha-app/lawha/backend/internal/service/invite"
	"github.com/lawha-app/lawha/backend/internal/service/lock"
	"github.com/lawha-app/lawha/backend/internal/service/presence"
	"github.com/lawha-app/lawha/backend/internal/service/snapshot"
)

type testEnv struct {
	router    chi.Router
	registry  *presence.Registry
	feed      *feed.Feed
	snapshots *snapshot.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	feedSvc := feed.New(20, nil)
	lockSvc := lock.NewManager(time.Minute, nil)
	registry := presence.NewRegistry(30*time.Second, lockSvc, feedSvc, nil)
	snapshotSvc := snapshot.NewService(snapshot.NewMemoryStore(50), 0, feedSvc, nil)
	inviteSvc := inviteservice.NewService([]byte("test-secret"), "http://lawha.test", time.Hour)

	r := chi.NewRouter()
	New(registry, feedSvc, snapshotSvc, inviteSvc).RegisterRoutes(r)

	return &testEnv{router: r, registry: registry, feed: feedSvc, snapshots: snapshotSvc}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestPresenceEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Connect("p1", "user-1", "Noor", "conn-1")

	rec := env.do(t, http.MethodGet, "/projects/p1/presence", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var roster []collab.PresenceEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
		t.Fatalf("bad roster: %v", err)
	}
	if len(roster) != 1 || roster[0].DisplayName != "Noor" || !roster[0].Online {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

func TestFeedEndpointRespectsLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.feed.Append(collab.ChangeEvent{ProjectID: "p1", Kind: collab.EventElementMoved})
	}

	rec := env.do(t, http.MethodGet, "/projects/p1/feed?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var events []collab.ChangeEvent
	json.Unmarshal(rec.Body.Bytes(), &events)
	if len(events) != 2 || events[0].Seq != 5 {
		t.Fatalf("expected newest 2 events, got %+v", events)
	}

	if rec := env.do(t, http.MethodGet, "/projects/p1/feed?limit=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	env := newTestEnv(t)

	elements := json.RawMessage(`[{"id":"note-1"}]`)
	snap, err := env.snapshots.Create(context.Background(), "p1", elements, "sess-a")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/projects/p1/snapshots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var metas []collab.Snapshot
	json.Unmarshal(rec.Body.Bytes(), &metas)
	if len(metas) != 1 || metas[0].ID != snap.ID {
		t.Fatalf("unexpected listing: %+v", metas)
	}

	rec = env.do(t, http.MethodPost, "/projects/p1/snapshots/"+snap.ID+"/restore", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var restored struct {
		Elements json.RawMessage `json:"elements"`
	}
	json.Unmarshal(rec.Body.Bytes(), &restored)
	if string(restored.Elements) != string(elements) {
		t.Fatalf("expected elements back, got %s", restored.Elements)
	}

	rec = env.do(t, http.MethodPost, "/projects/p1/snapshots/missing/restore", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown snapshot, got %d", rec.Code)
	}
}

func TestCreateInviteEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{"permissionLevel": "commenter", "ttlSeconds": 3600})
	rec := env.do(t, http.MethodPost, "/projects/p1/invites", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var link invitemodel.Link
	json.Unmarshal(rec.Body.Bytes(), &link)
	if link.Token == "" || link.ProjectID != "p1" || link.PermissionLevel != invitemodel.PermissionCommenter {
		t.Fatalf("unexpected link: %+v", link)
	}

	body, _ = json.Marshal(map[string]any{"permissionLevel": "owner"})
	if rec := env.do(t, http.MethodPost, "/projects/p1/invites", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", rec.Code)
	}
}
