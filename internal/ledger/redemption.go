package ledger

import (
	"context"
	"fmt"

	"github.com/dukerupert/famhub/internal/metrics"
	"github.com/dukerupert/famhub/internal/model"
)

// RedemptionResult carries the rows a redemption operation changed, so the
// caller can publish them.
type RedemptionResult struct {
	Redemption *model.RedemptionView `json:"redemption"`
	// Kid is the child's profile after the operation. It is nil when the
	// balance did not change.
	Kid *model.Profile `json:"kid,omitempty"`
}

// RequestRedemption reserves the reward's cost from the calling child's
// balance and records a pending redemption. Either both happen or neither.
func (l *Ledger) RequestRedemption(ctx context.Context, a Actor, rewardID string) (*RedemptionResult, error) {
	var res RedemptionResult
	err := l.inTx(ctx, "request_redemption", func(s txStores) error {
		kid, err := loadActor(ctx, s, a)
		if err != nil {
			return err
		}
		if !kid.IsChild() {
			return ErrForbidden
		}

		reward, err := s.rewards.Get(ctx, kid.FamilyID, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return ErrNotFound
		}

		ok, err := s.profiles.Debit(ctx, kid.ID, reward.Cost)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientBalance, kid.Balance, reward.Cost)
		}

		red, err := s.rewards.CreateRedemption(ctx, kid.FamilyID, kid.ID, reward.ID, reward.Cost)
		if err != nil {
			return err
		}

		if res.Redemption, err = s.rewards.GetRedemptionView(ctx, kid.FamilyID, red.ID); err != nil {
			return err
		}
		if res.Kid, err = s.profiles.GetByID(ctx, kid.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsMoved.WithLabelValues("debit").Add(float64(res.Redemption.PointsReserved))
	l.logger.Info("redemption requested",
		"redemption_id", res.Redemption.ID, "kid_id", res.Kid.ID,
		"points", res.Redemption.PointsReserved, "balance", res.Kid.Balance)
	return &res, nil
}

// ApproveRedemption marks a pending redemption approved. The points were
// already taken at request time, so the balance is not touched.
func (l *Ledger) ApproveRedemption(ctx context.Context, a Actor, redemptionID string) (*RedemptionResult, error) {
	var res RedemptionResult
	err := l.inTx(ctx, "approve_redemption", func(s txStores) error {
		red, err := l.decide(ctx, s, a, redemptionID, model.RedemptionApproved)
		if err != nil {
			return err
		}
		res.Redemption, err = s.rewards.GetRedemptionView(ctx, red.FamilyID, red.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("redemption approved", "redemption_id", res.Redemption.ID, "kid_id", res.Redemption.KidID)
	return &res, nil
}

// RejectRedemption marks a pending redemption rejected and refunds the
// reserved points to the child in the same transaction.
func (l *Ledger) RejectRedemption(ctx context.Context, a Actor, redemptionID string) (*RedemptionResult, error) {
	var res RedemptionResult
	err := l.inTx(ctx, "reject_redemption", func(s txStores) error {
		red, err := l.decide(ctx, s, a, redemptionID, model.RedemptionRejected)
		if err != nil {
			return err
		}
		if err := s.profiles.Credit(ctx, red.KidID, red.PointsReserved); err != nil {
			return err
		}

		if res.Redemption, err = s.rewards.GetRedemptionView(ctx, red.FamilyID, red.ID); err != nil {
			return err
		}
		if res.Kid, err = s.profiles.GetByID(ctx, red.KidID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsMoved.WithLabelValues("credit").Add(float64(res.Redemption.PointsReserved))
	l.logger.Info("redemption rejected",
		"redemption_id", res.Redemption.ID, "kid_id", res.Redemption.KidID,
		"refunded", res.Redemption.PointsReserved)
	return &res, nil
}

// decide runs the shared checks for approve and reject and performs the
// status transition.
func (l *Ledger) decide(ctx context.Context, s txStores, a Actor, redemptionID string, to model.RedemptionStatus) (*model.Redemption, error) {
	parent, err := loadActor(ctx, s, a)
	if err != nil {
		return nil, err
	}
	if !parent.IsParent() {
		return nil, ErrForbidden
	}

	red, err := s.rewards.GetRedemption(ctx, parent.FamilyID, redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, ErrNotFound
	}
	if red.Status != model.RedemptionPending {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, red.Status)
	}

	ok, err := s.rewards.TransitionRedemption(ctx, red.FamilyID, red.ID, model.RedemptionPending, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	return red, nil
}
