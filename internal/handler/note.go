package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

const maxNoteLength = 2000

var validColors = map[string]bool{
	"yellow": true,
	"pink":   true,
	"blue":   true,
	"green":  true,
	"purple": true,
	"orange": true,
}

type NoteHandler struct {
	noteStore *store.NoteStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{noteStore: ns, hub: hub, logger: logger}
}

func (h *NoteHandler) publish(familyID string, event websocket.EventType, n *model.Note) {
	if h.hub != nil {
		h.hub.Publish(websocket.TableNotes, familyID, event, n)
	}
}

type noteRequest struct {
	Content string `json:"content"`
	Color   string `json:"color"`
}

func (r *noteRequest) validate(w http.ResponseWriter) bool {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		badRequest(w, "content is required")
		return false
	}
	if len(r.Content) > maxNoteLength {
		badRequest(w, "content is too long")
		return false
	}
	if r.Color == "" {
		r.Color = model.DefaultNoteColor
	}
	if !validColors[r.Color] {
		badRequest(w, "color must be yellow, pink, blue, green, purple, or orange")
		return false
	}
	return true
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.validate(w) {
		return
	}

	note, err := h.noteStore.Create(r.Context(), ac.FamilyID, req.Content, req.Color, strPtr(ac.ProfileID))
	if err != nil {
		internalError(w, h.logger, "failed to create note", err)
		return
	}

	h.publish(ac.FamilyID, websocket.EventInsert, note)
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.noteStore.List(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "failed to list notes", err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.noteStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get note", err)
		return
	}
	if existing == nil {
		notFound(w, "note")
		return
	}

	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if !req.validate(w) {
		return
	}

	note, err := h.noteStore.Update(r.Context(), familyID, id, req.Content, req.Color)
	if err != nil {
		internalError(w, h.logger, "failed to update note", err)
		return
	}

	h.publish(familyID, websocket.EventUpdate, note)
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.noteStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get note", err)
		return
	}
	if existing == nil {
		notFound(w, "note")
		return
	}

	if err := h.noteStore.Delete(r.Context(), familyID, id); err != nil {
		internalError(w, h.logger, "failed to delete note", err)
		return
	}

	h.publish(familyID, websocket.EventDelete, existing)
	w.WriteHeader(http.StatusNoContent)
}
