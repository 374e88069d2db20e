package project

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
	"github.com/lawha-app/lawha/backend/internal/service/feed"
	inviteservice "github.com/lawha-app/lawha/backend/internal/service/invite"
	"github.com/lawha-app/lawha/backend/internal/service/presence"
	"github.com/lawha-app/lawha/backend/internal/service/snapshot"
	"github.com/lawha-app/lawha/backend/pkg/utils"
)

// Handler serves the non-realtime project surface: the presence roster,
// activity feed and version history the dashboard panels poll, plus
// invite creation and snapshot restore.
type Handler struct {
	registry  *presence.Registry
	feed      *feed.Feed
	snapshots *snapshot.Service
	invites   *inviteservice.Service
}

// New creates the project REST handler.
func New(registry *presence.Registry, feedSvc *feed.Feed, snapshots *snapshot.Service, invites *inviteservice.Service) *Handler {
	return &Handler{
		registry:  registry,
		feed:      feedSvc,
		snapshots: snapshots,
		invites:   invites,
	}
}

// RegisterRoutes mounts the project routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/presence", h.handlePresence)
		r.Get("/feed", h.handleFeed)
		r.Get("/snapshots", h.handleListSnapshots)
		r.Post("/snapshots/{snapshotID}/restore", h.handleRestoreSnapshot)
		r.Post("/invites", h.handleCreateInvite)
	})
}

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	utils.RespondJSON(w, http.StatusOK, h.registry.Roster(projectID))
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	utils.RespondJSON(w, http.StatusOK, h.feed.Tail(projectID, limit))
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	snaps, err := h.snapshots.List(r.Context(), projectID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "snapshot listing failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snaps)
}

func (h *Handler) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotID")

	elements, err := h.snapshots.Restore(r.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			utils.RespondError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "restore failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"snapshotId": snapshotID,
		"elements":   elements,
	})
}

func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var payload struct {
		PermissionLevel string `json:"permissionLevel"`
		TTLSeconds      int    `json:"ttlSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.invites.Generate(projectID, invitemodel.Permission(payload.PermissionLevel), time.Duration(payload.TTLSeconds)*time.Second)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, link)
}
