package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/ledger"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/push"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

type RewardHandler struct {
	rewardStore  *store.RewardStore
	profileStore *store.ProfileStore
	ledger       *ledger.Ledger
	hub          *websocket.Hub
	notifier     *push.Notifier
	logger       *slog.Logger
}

// NewRewardHandler creates the rewards and redemptions handler. notifier may
// be nil when push is not configured.
func NewRewardHandler(rs *store.RewardStore, ps *store.ProfileStore, l *ledger.Ledger, hub *websocket.Hub, notifier *push.Notifier, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, profileStore: ps, ledger: l, hub: hub, notifier: notifier, logger: logger}
}

// RedemptionOwner returns the profile whose redemptions profileID may see,
// or "" when it may see the whole family's. The stored role decides, as it
// does for every ledger operation.
func RedemptionOwner(ctx context.Context, profiles *store.ProfileStore, familyID, profileID string) (string, error) {
	p, err := profiles.Get(ctx, familyID, profileID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", ledger.ErrForbidden
	}
	if p.IsParent() {
		return "", nil
	}
	return p.ID, nil
}

func (h *RewardHandler) publish(table, familyID string, event websocket.EventType, record any) {
	if h.hub != nil {
		h.hub.Publish(table, familyID, event, record)
	}
}

// publishResult sends the redemption row to the parents and the child who
// owns it and, when the balance moved, the child's profile to everyone.
func (h *RewardHandler) publishResult(event websocket.EventType, res *ledger.RedemptionResult) {
	familyID := res.Redemption.FamilyID
	if h.hub != nil {
		h.hub.PublishOwned(websocket.TableRedemptions, familyID, res.Redemption.KidID, event, res.Redemption)
	}
	if res.Kid != nil {
		h.publish(websocket.TableProfiles, familyID, websocket.EventUpdate, res.Kid)
	}
}

type rewardRequest struct {
	Name string `json:"name"`
	Cost int    `json:"cost"`
	Icon string `json:"icon"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var req rewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if req.Cost < 1 {
		badRequest(w, "cost must be at least 1")
		return
	}

	reward, err := h.rewardStore.Create(r.Context(), familyID, req.Name, req.Cost, strings.TrimSpace(req.Icon))
	if err != nil {
		internalError(w, h.logger, "failed to create reward", err)
		return
	}

	h.publish(websocket.TableRewards, familyID, websocket.EventInsert, reward)
	writeJSON(w, http.StatusCreated, reward)
}

// List returns the catalog, cheapest first.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.List(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		internalError(w, h.logger, "failed to list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// Delete removes a reward. Pending redemptions of it stay decidable.
func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id := pathID(r, "id")

	existing, err := h.rewardStore.Get(r.Context(), familyID, id)
	if err != nil {
		internalError(w, h.logger, "failed to get reward", err)
		return
	}
	if existing == nil {
		notFound(w, "reward")
		return
	}

	if err := h.rewardStore.Delete(r.Context(), familyID, id); err != nil {
		internalError(w, h.logger, "failed to delete reward", err)
		return
	}

	h.publish(websocket.TableRewards, familyID, websocket.EventDelete, existing)
	w.WriteHeader(http.StatusNoContent)
}

// Redeem reserves the reward's cost from the calling child.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.RequestRedemption(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	h.publishResult(websocket.EventInsert, res)
	h.notifier.RedemptionRequested(res.Redemption)
	writeJSON(w, http.StatusCreated, res)
}

// ListRedemptions returns the family's redemptions, newest first. A child
// only sees its own.
func (h *RewardHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	owner, err := RedemptionOwner(r.Context(), h.profileStore, ac.FamilyID, ac.ProfileID)
	if errors.Is(err, ledger.ErrForbidden) {
		forbidden(w)
		return
	}
	if err != nil {
		internalError(w, h.logger, "failed to load profile", err)
		return
	}

	views, err := h.rewardStore.ListRedemptionViews(r.Context(), ac.FamilyID, strPtr(owner))
	if err != nil {
		internalError(w, h.logger, "failed to list redemptions", err)
		return
	}
	if views == nil {
		views = []model.RedemptionView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RewardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.ApproveRedemption(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	h.publishResult(websocket.EventUpdate, res)
	h.notifier.RedemptionDecided(res.Redemption)
	writeJSON(w, http.StatusOK, res)
}

// Reject refunds the reserved points to the child.
func (h *RewardHandler) Reject(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.RejectRedemption(r.Context(), actor(r), pathID(r, "id"))
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	h.publishResult(websocket.EventUpdate, res)
	h.notifier.RedemptionDecided(res.Redemption)
	writeJSON(w, http.StatusOK, res)
}
