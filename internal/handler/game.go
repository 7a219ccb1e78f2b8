package handler

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

var gameIDRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// GameHandler records mini-game progress. Scores never touch the balance.
type GameHandler struct {
	scoreStore *store.GameScoreStore
	logger     *slog.Logger
}

func NewGameHandler(gs *store.GameScoreStore, logger *slog.Logger) *GameHandler {
	return &GameHandler{scoreStore: gs, logger: logger}
}

func gameID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := pathID(r, "game_id")
	if !gameIDRegexp.MatchString(id) {
		badRequest(w, "invalid game_id")
		return "", false
	}
	return id, true
}

func (h *GameHandler) RecordScore(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	game, ok := gameID(w, r)
	if !ok {
		return
	}

	var req struct {
		Level  int `json:"level"`
		Points int `json:"points"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Level < 1 {
		badRequest(w, "level must be >= 1")
		return
	}
	if req.Points < 0 {
		badRequest(w, "points must be >= 0")
		return
	}

	score, err := h.scoreStore.Record(r.Context(), ac.FamilyID, ac.ProfileID, game, req.Level, req.Points)
	if err != nil {
		internalError(w, h.logger, "failed to record score", err)
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

// HighestLevel returns the caller's best level and the level to play next.
func (h *GameHandler) HighestLevel(w http.ResponseWriter, r *http.Request) {
	game, ok := gameID(w, r)
	if !ok {
		return
	}

	level, err := h.scoreStore.HighestLevel(r.Context(), auth.ProfileID(r.Context()), game)
	if err != nil {
		internalError(w, h.logger, "failed to get highest level", err)
		return
	}
	writeJSON(w, http.StatusOK, model.GameProgress{GameID: game, HighestLevel: level, NextLevel: level + 1})
}
