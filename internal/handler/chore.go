package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/ledger"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

type ChoreHandler struct {
	choreStore   *store.ChoreStore
	profileStore *store.ProfileStore
	ledger       *ledger.Ledger
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, ps *store.ProfileStore, l *ledger.Ledger, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, profileStore: ps, ledger: l, hub: hub, logger: logger}
}

func (h *ChoreHandler) publish(familyID string, event websocket.EventType, c *model.Chore) {
	if h.hub != nil {
		h.hub.Publish(websocket.TableChores, familyID, event, c)
	}
}

type choreRequest struct {
	Title      string  `json:"title"`
	Points     int     `json:"points"`
	AssignedTo *string `json:"assigned_to"`
}

func (h *ChoreHandler) validate(ctx context.Context, w http.ResponseWriter, familyID string, req *choreRequest) bool {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		badRequest(w, "title is required")
		return false
	}
	if req.Points < 1 {
		badRequest(w, "points must be at least 1")
		return false
	}
	if req.AssignedTo != nil && *req.AssignedTo == "" {
		req.AssignedTo = nil
	}
	if req.AssignedTo != nil {
		p, err := h.profileStore.Get(ctx, familyID, *req.AssignedTo)
		if err != nil {
			internalError(w, h.logger, "failed to check assignee", err)
			return false
		}
		if p == nil {
			badRequest(w, "assigned_to is not a member of this family")
			return false
		}
	}
	return true
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	chores, err := h.choreStore.List(r.Context(), familyID)
	if err != nil {
		internalError(w, h.logger, "failed to list chores", err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var req choreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validate(r.Context(), w, familyID, &req) {
		return
	}

	c, err := h.choreStore.Create(r.Context(), familyID, req.Title, req.Points, req.AssignedTo)
	if err != nil {
		internalError(w, h.logger, "failed to create chore", err)
		return
	}

	h.publish(familyID, websocket.EventInsert, c)
	writeJSON(w, http.StatusCreated, c)
}

// Update edits title and points. An assignee can be set on an unassigned
// chore but never changed or cleared.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.choreStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get chore", err)
		return
	}
	if existing == nil {
		notFound(w, "chore")
		return
	}

	var req choreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validate(r.Context(), w, familyID, &req) {
		return
	}

	c, err := h.choreStore.Update(r.Context(), familyID, id, req.Title, req.Points, req.AssignedTo)
	if err != nil {
		internalError(w, h.logger, "failed to update chore", err)
		return
	}

	h.publish(familyID, websocket.EventUpdate, c)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.choreStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get chore", err)
		return
	}
	if existing == nil {
		notFound(w, "chore")
		return
	}

	if err := h.choreStore.Delete(r.Context(), familyID, id); err != nil {
		internalError(w, h.logger, "failed to delete chore", err)
		return
	}

	h.publish(familyID, websocket.EventDelete, existing)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleCompletion flips completion through the ledger, which claims the
// chore if needed and moves its points.
func (h *ChoreHandler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.ToggleChore(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	familyID := res.Chore.FamilyID
	h.publish(familyID, websocket.EventUpdate, res.Chore)
	if res.Profile != nil && h.hub != nil {
		h.hub.Publish(websocket.TableProfiles, familyID, websocket.EventUpdate, res.Profile)
	}
	writeJSON(w, http.StatusOK, res)
}
