package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

const maxDisplayNameLength = 40

type ProfileHandler struct {
	profileStore *store.ProfileStore
	tokens       *auth.Tokens
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, tokens *auth.Tokens, hub *websocket.Hub, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, tokens: tokens, hub: hub, logger: logger}
}

func (h *ProfileHandler) publish(event websocket.EventType, p *model.Profile) {
	if h.hub != nil {
		h.hub.Publish(websocket.TableProfiles, p.FamilyID, event, p)
	}
}

// target loads the {id} profile within the caller's family. Only parents and
// the profile itself may modify it.
func (h *ProfileHandler) target(w http.ResponseWriter, r *http.Request, selfOrParent bool) (*model.Profile, bool) {
	ac, _ := auth.FromContext(r.Context())
	id := pathID(r, "id")

	if selfOrParent && ac.Role != model.RoleParent && ac.ProfileID != id {
		forbidden(w)
		return nil, false
	}

	p, err := h.profileStore.Get(r.Context(), ac.FamilyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get profile", err)
		return nil, false
	}
	if p == nil {
		notFound(w, "profile")
		return nil, false
	}
	return p, true
}

func validDisplayName(w http.ResponseWriter, name string) bool {
	if name == "" {
		badRequest(w, "display_name is required")
		return false
	}
	if len(name) > maxDisplayNameLength {
		badRequest(w, "display_name is too long")
		return false
	}
	return true
}

// Me returns the caller's own profile, balance included.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	p, err := h.profileStore.Get(r.Context(), ac.FamilyID, ac.ProfileID)
	if err != nil {
		internalError(w, h.logger, "failed to get profile", err)
		return
	}
	if p == nil {
		notFound(w, "profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileStore.List(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "failed to list profiles", err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Create adds a member to the caller's family. Parents only.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var req struct {
		DisplayName string     `json:"display_name"`
		Role        model.Role `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if !validDisplayName(w, req.DisplayName) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleChild
	}
	if !req.Role.Valid() {
		badRequest(w, "role must be parent or child")
		return
	}

	p, err := h.profileStore.Create(r.Context(), familyID, req.DisplayName, req.Role)
	if err != nil {
		internalError(w, h.logger, "failed to create profile", err)
		return
	}

	h.publish(websocket.EventInsert, p)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.target(w, r, true)
	if !ok {
		return
	}

	var req struct {
		DisplayName string  `json:"display_name"`
		AvatarURL   *string `json:"avatar_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = existing.DisplayName
	}
	if !validDisplayName(w, name) {
		return
	}
	avatar := existing.AvatarURL
	if req.AvatarURL != nil {
		avatar = strings.TrimSpace(*req.AvatarURL)
	}

	p, err := h.profileStore.UpdateDisplay(r.Context(), existing.FamilyID, existing.ID, name, avatar)
	if err != nil {
		internalError(w, h.logger, "failed to update profile", err)
		return
	}

	h.publish(websocket.EventUpdate, p)
	writeJSON(w, http.StatusOK, p)
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (h *ProfileHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	p, ok := h.target(w, r, true)
	if !ok {
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validPIN(req.PIN) {
		badRequest(w, "pin must be 4 to 8 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, h.logger, "failed to hash pin", err)
		return
	}
	if err := h.profileStore.SetPIN(r.Context(), p.FamilyID, p.ID, string(hash)); err != nil {
		internalError(w, h.logger, "failed to set pin", err)
		return
	}

	h.refreshed(w, r, p)
}

func (h *ProfileHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	p, ok := h.target(w, r, true)
	if !ok {
		return
	}
	if err := h.profileStore.ClearPIN(r.Context(), p.FamilyID, p.ID); err != nil {
		internalError(w, h.logger, "failed to clear pin", err)
		return
	}

	h.refreshed(w, r, p)
}

// refreshed re-reads p after a write, publishes it and writes it back.
func (h *ProfileHandler) refreshed(w http.ResponseWriter, r *http.Request, p *model.Profile) {
	updated, err := h.profileStore.Get(r.Context(), p.FamilyID, p.ID)
	if err != nil || updated == nil {
		internalError(w, h.logger, "failed to reload profile", err)
		return
	}
	h.publish(websocket.EventUpdate, updated)
	writeJSON(w, http.StatusOK, updated)
}

// SwitchSession issues a token for another profile in the caller's family,
// for a device shared between family members. A profile with a PIN requires
// it.
func (h *ProfileHandler) SwitchSession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.target(w, r, false)
	if !ok {
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	if p.HasPIN {
		hash, err := h.profileStore.GetPINHash(r.Context(), p.FamilyID, p.ID)
		if err != nil {
			internalError(w, h.logger, "failed to check pin", err)
			return
		}
		if req.PIN == "" {
			writeError(w, http.StatusUnauthorized, "pin_required", "pin required")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid_pin", "incorrect pin")
			return
		}
	}

	token, err := h.tokens.Issue(p)
	if err != nil {
		internalError(w, h.logger, "failed to issue token", err)
		return
	}
	h.logger.Info("session switched", "from", auth.ProfileID(r.Context()), "to", p.ID)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Profile: p})
}

type sessionResponse struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
	Family  *model.Family  `json:"family,omitempty"`
}
