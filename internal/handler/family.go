package handler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

// FamilyHandler creates and joins families. Create and Join are the only
// unauthenticated API routes.
type FamilyHandler struct {
	db     *sql.DB
	tokens *auth.Tokens
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFamilyHandler(db *sql.DB, tokens *auth.Tokens, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{db: db, tokens: tokens, hub: hub, logger: logger}
}

type familyRequest struct {
	FamilyName  string `json:"family_name"`
	SecretKey   string `json:"secret_key"`
	DisplayName string `json:"display_name"`
}

// Create makes a family and its first parent in one transaction and returns
// a token for that parent along with the family's secret key.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.FamilyName == "" {
		badRequest(w, "family_name is required")
		return
	}
	if !validDisplayName(w, req.DisplayName) {
		return
	}

	var family *model.Family
	var parent *model.Profile
	err := h.inTx(r.Context(), func(fs *store.FamilyStore, ps *store.ProfileStore) error {
		var err error
		if family, err = fs.Create(r.Context(), req.FamilyName); err != nil {
			return err
		}
		parent, err = ps.Create(r.Context(), family.ID, req.DisplayName, model.RoleParent)
		return err
	})
	if err != nil {
		internalError(w, h.logger, "failed to create family", err)
		return
	}

	h.logger.Info("family created", "family_id", family.ID, "parent_id", parent.ID)
	h.respond(w, http.StatusCreated, family, parent)
}

// Join adds a parent to the family holding the secret key.
func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if strings.TrimSpace(req.SecretKey) == "" {
		badRequest(w, "secret_key is required")
		return
	}
	if !validDisplayName(w, req.DisplayName) {
		return
	}

	family, err := store.NewFamilyStore(h.db).GetBySecretKey(r.Context(), req.SecretKey)
	if err != nil {
		internalError(w, h.logger, "failed to look up family", err)
		return
	}
	if family == nil {
		notFound(w, "family")
		return
	}

	parent, err := store.NewProfileStore(h.db).Create(r.Context(), family.ID, req.DisplayName, model.RoleParent)
	if err != nil {
		internalError(w, h.logger, "failed to join family", err)
		return
	}

	if h.hub != nil {
		h.hub.Publish(websocket.TableProfiles, family.ID, websocket.EventInsert, parent)
	}
	h.logger.Info("family joined", "family_id", family.ID, "parent_id", parent.ID)
	h.respond(w, http.StatusCreated, family, parent)
}

// Get returns the caller's family. The secret key is shown to parents only.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := store.NewFamilyStore(h.db).GetByID(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "failed to get family", err)
		return
	}
	if family == nil {
		notFound(w, "family")
		return
	}
	if !auth.IsParent(r.Context()) {
		family.SecretKey = ""
	}
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) respond(w http.ResponseWriter, status int, family *model.Family, p *model.Profile) {
	token, err := h.tokens.Issue(p)
	if err != nil {
		internalError(w, h.logger, "failed to issue token", err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, Profile: p, Family: family})
}

func (h *FamilyHandler) inTx(ctx context.Context, fn func(*store.FamilyStore, *store.ProfileStore) error) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(store.NewFamilyStore(tx), store.NewProfileStore(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
