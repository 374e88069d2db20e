package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	collabHandler "github.com/lawha-app/lawha/backend/internal/handler/collab"
	projectHandler "github.com/lawha-app/lawha/backend/internal/handler/project"
	middlewarePkg "github.com/lawha-app/lawha/backend/internal/middleware"
	"github.com/lawha-app/lawha/backend/internal/service/cursor"
	"github.com/lawha-app/lawha/backend/internal/service/feed"
	inviteservice "github.com/lawha-app/lawha/backend/internal/service/invite"
	"github.com/lawha-app/lawha/backend/internal/service/lock"
	"github.com/lawha-app/lawha/backend/internal/service/presence"
	"github.com/lawha-app/lawha/backend/internal/service/snapshot"
	"github.com/lawha-app/lawha/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the collaboration core.
func NewRouter(hub *collabHandler.Hub, registry *presence.Registry, cursors *cursor.Broadcaster, locks *lock.Manager, feedSvc *feed.Feed, snapshots *snapshot.Service, invites *inviteservice.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	wsHandler := collabHandler.NewHandler(hub, registry, cursors, locks, feedSvc, snapshots, invites)
	wsHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		projectHandler.New(registry, feedSvc, snapshots, invites).RegisterRoutes(api)
	})

	return r
}
