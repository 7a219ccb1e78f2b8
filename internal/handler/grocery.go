package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/grocery"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

type GroceryHandler struct {
	groceryStore *store.GroceryStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewGroceryHandler(gs *store.GroceryStore, hub *websocket.Hub, logger *slog.Logger) *GroceryHandler {
	return &GroceryHandler{groceryStore: gs, hub: hub, logger: logger}
}

func (h *GroceryHandler) publish(familyID string, event websocket.EventType, g *model.Grocery) {
	if h.hub != nil {
		h.hub.Publish(websocket.TableGroceries, familyID, event, g)
	}
}

type groceryRequest struct {
	ItemName    string `json:"item_name"`
	Quantity    string `json:"quantity"`
	Category    string `json:"category"`
	IsPurchased *bool  `json:"is_purchased"`
}

func (h *GroceryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req groceryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ItemName = strings.TrimSpace(req.ItemName)
	if req.ItemName == "" {
		badRequest(w, "item_name is required")
		return
	}

	// Auto-categorize if no category provided
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = grocery.Categorize(req.ItemName)
	}

	g, err := h.groceryStore.Create(r.Context(), ac.FamilyID, req.ItemName, strings.TrimSpace(req.Quantity), req.Category, strPtr(ac.ProfileID))
	if err != nil {
		internalError(w, h.logger, "failed to create grocery", err)
		return
	}

	h.publish(ac.FamilyID, websocket.EventInsert, g)
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroceryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.groceryStore.List(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "failed to list groceries", err)
		return
	}
	if items == nil {
		items = []model.Grocery{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Update edits an entry. Fields left out of the body keep their value, so
// checking an item off only needs {"is_purchased": true}.
func (h *GroceryHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.groceryStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get grocery", err)
		return
	}
	if existing == nil {
		notFound(w, "grocery")
		return
	}

	var req groceryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name, qty, cat := existing.ItemName, existing.Quantity, existing.Category
	if s := strings.TrimSpace(req.ItemName); s != "" {
		name = s
	}
	if req.Quantity != "" {
		qty = strings.TrimSpace(req.Quantity)
	}
	if req.Category != "" {
		cat = strings.TrimSpace(req.Category)
	}

	g, err := h.groceryStore.Update(r.Context(), familyID, id, name, qty, cat)
	if err != nil {
		internalError(w, h.logger, "failed to update grocery", err)
		return
	}
	if g != nil && req.IsPurchased != nil && *req.IsPurchased != g.IsPurchased {
		if g, err = h.groceryStore.SetPurchased(r.Context(), familyID, id, *req.IsPurchased); err != nil {
			internalError(w, h.logger, "failed to update grocery", err)
			return
		}
	}
	if g == nil {
		notFound(w, "grocery")
		return
	}

	h.publish(familyID, websocket.EventUpdate, g)
	writeJSON(w, http.StatusOK, g)
}

func (h *GroceryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.groceryStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get grocery", err)
		return
	}
	if existing == nil {
		notFound(w, "grocery")
		return
	}

	if err := h.groceryStore.Delete(r.Context(), familyID, id); err != nil {
		internalError(w, h.logger, "failed to delete grocery", err)
		return
	}

	h.publish(familyID, websocket.EventDelete, existing)
	w.WriteHeader(http.StatusNoContent)
}

// ClearPurchased removes every purchased entry and publishes one delete per
// removed row.
func (h *GroceryHandler) ClearPurchased(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	items, err := h.groceryStore.List(r.Context(), familyID)
	if err != nil {
		internalError(w, h.logger, "failed to list groceries", err)
		return
	}
	snapshots := make(map[string]model.Grocery, len(items))
	for _, g := range items {
		if g.IsPurchased {
			snapshots[g.ID] = g
		}
	}

	ids, err := h.groceryStore.ClearPurchased(r.Context(), familyID)
	if err != nil {
		internalError(w, h.logger, "failed to clear purchased", err)
		return
	}

	for _, id := range ids {
		g, ok := snapshots[id]
		if !ok {
			g = model.Grocery{ID: id, FamilyID: familyID, IsPurchased: true}
		}
		h.publish(familyID, websocket.EventDelete, &g)
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": len(ids)})
}
