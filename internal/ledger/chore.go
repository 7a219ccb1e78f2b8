package ledger

import (
	"context"

	"github.com/dukerupert/famhub/internal/chore"
	"github.com/dukerupert/famhub/internal/metrics"
	"github.com/dukerupert/famhub/internal/model"
)

// ChoreResult carries the chore after a toggle and the profile whose balance
// moved, if any.
type ChoreResult struct {
	Chore   *model.Chore   `json:"chore"`
	Profile *model.Profile `json:"profile,omitempty"`
	// Points is positive for a credit, negative for a revocation.
	Points int `json:"points"`
}

// ToggleChore flips a chore's completion for any family member. Completing
// claims an unassigned chore and credits its points to the assignee;
// un-completing revokes the amount that was credited from whoever received
// it, never taking the balance below zero. Editing a completed chore's points
// does not change what undo takes back.
func (l *Ledger) ToggleChore(ctx context.Context, a Actor, choreID string) (*ChoreResult, error) {
	var res ChoreResult
	err := l.inTx(ctx, "toggle_chore", func(s txStores) error {
		actor, err := loadActor(ctx, s, a)
		if err != nil {
			return err
		}

		c, err := s.chores.Get(ctx, actor.FamilyID, choreID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotFound
		}

		t := chore.Resolve(*c, actor.ID)

		var moved *string
		var awardedTo *string
		var awarded int
		if t.Completed {
			awardedTo, awarded = t.AssignedTo, c.Points
			if err := s.profiles.Credit(ctx, *awardedTo, awarded); err != nil {
				return err
			}
			moved = awardedTo
			res.Points = awarded
		} else if c.AwardedTo != nil {
			taken, err := s.profiles.Revoke(ctx, *c.AwardedTo, c.AwardedPoints)
			if err != nil {
				return err
			}
			moved = c.AwardedTo
			res.Points = -taken
		}

		if res.Chore, err = s.chores.SetCompletion(ctx, actor.FamilyID, c.ID, t.Completed, t.AssignedTo, awardedTo, awarded); err != nil {
			return err
		}
		if moved != nil {
			if res.Profile, err = s.profiles.Get(ctx, actor.FamilyID, *moved); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.Points > 0:
		metrics.PointsMoved.WithLabelValues("credit").Add(float64(res.Points))
	case res.Points < 0:
		metrics.PointsMoved.WithLabelValues("debit").Add(float64(-res.Points))
	}
	l.logger.Info("chore toggled",
		"chore_id", res.Chore.ID, "completed", res.Chore.IsCompleted,
		"actor_id", a.ProfileID, "points", res.Points)
	return &res, nil
}
