package ledger

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

type fixture struct {
	db       *sql.DB
	ledger   *Ledger
	profiles *store.ProfileStore
	rewards  *store.RewardStore
	chores   *store.ChoreStore
	family   *model.Family
	parent   *model.Profile
	kid      *model.Profile
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := &fixture{
		db:       db,
		ledger:   New(db, slog.New(slog.NewTextHandler(io.Discard, nil))),
		profiles: store.NewProfileStore(db),
		rewards:  store.NewRewardStore(db),
		chores:   store.NewChoreStore(db),
	}

	f.family, err = store.NewFamilyStore(db).Create(ctx, "Testers")
	require.NoError(t, err)
	f.parent, err = f.profiles.Create(ctx, f.family.ID, "Dad", model.RoleParent)
	require.NoError(t, err)
	f.kid, err = f.profiles.Create(ctx, f.family.ID, "Ava", model.RoleChild)
	require.NoError(t, err)
	return f
}

func (f *fixture) actor(p *model.Profile) Actor {
	return Actor{ProfileID: p.ID, FamilyID: p.FamilyID}
}

func (f *fixture) setBalance(t *testing.T, p *model.Profile, balance int) {
	t.Helper()
	_, err := f.db.Exec(`UPDATE profiles SET balance = ? WHERE id = ?`, balance, p.ID)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, p *model.Profile) int {
	t.Helper()
	got, err := f.profiles.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got.Balance
}

func (f *fixture) reward(t *testing.T, cost int) *model.Reward {
	t.Helper()
	r, err := f.rewards.Create(context.Background(), f.family.ID, "Reward", cost, "")
	require.NoError(t, err)
	return r
}

func TestRedemptionScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 50)

	f.setBalance(t, f.kid, 40)
	_, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 40, f.balance(t, f.kid))

	views, err := f.rewards.ListRedemptionViews(ctx, f.family.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, views, "failed request must not leave a redemption row")

	f.setBalance(t, f.kid, 60)
	res, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionPending, res.Redemption.Status)
	assert.Equal(t, 50, res.Redemption.PointsReserved)
	assert.Equal(t, 10, res.Kid.Balance)
	assert.Equal(t, 10, f.balance(t, f.kid))

	rejected, err := f.ledger.RejectRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionRejected, rejected.Redemption.Status)
	assert.Equal(t, 60, rejected.Kid.Balance)
	assert.Equal(t, 60, f.balance(t, f.kid))

	_, err = f.ledger.ApproveRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 60, f.balance(t, f.kid))
}

func TestApproveDoesNotTouchBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 30)
	f.setBalance(t, f.kid, 100)

	res, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.NoError(t, err)
	require.Equal(t, 70, f.balance(t, f.kid))

	approved, err := f.ledger.ApproveRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionApproved, approved.Redemption.Status)
	assert.Nil(t, approved.Kid)
	assert.Equal(t, 70, f.balance(t, f.kid))

	_, err = f.ledger.RejectRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 70, f.balance(t, f.kid), "approved redemptions are terminal")
}

func TestRefundUsesReservedPoints(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 25)
	f.setBalance(t, f.kid, 25)

	res, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.NoError(t, err)

	require.NoError(t, f.rewards.Delete(ctx, f.family.ID, reward.ID))

	rejected, err := f.ledger.RejectRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
	require.NoError(t, err)
	assert.Nil(t, rejected.Redemption.RewardID)
	assert.Equal(t, 25, f.balance(t, f.kid))
}

func TestRoleAndFamilyChecks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 10)
	f.setBalance(t, f.kid, 50)

	_, err := f.ledger.RequestRedemption(ctx, f.actor(f.parent), reward.ID)
	assert.ErrorIs(t, err, ErrForbidden, "parents cannot redeem")

	res, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.NoError(t, err)

	_, err = f.ledger.ApproveRedemption(ctx, f.actor(f.kid), res.Redemption.ID)
	assert.ErrorIs(t, err, ErrForbidden, "children cannot approve")
	_, err = f.ledger.RejectRedemption(ctx, f.actor(f.kid), res.Redemption.ID)
	assert.ErrorIs(t, err, ErrForbidden, "children cannot reject")

	other, err := store.NewFamilyStore(f.db).Create(ctx, "Neighbours")
	require.NoError(t, err)
	otherParent, err := f.profiles.Create(ctx, other.ID, "Nosy", model.RoleParent)
	require.NoError(t, err)
	otherKid, err := f.profiles.Create(ctx, other.ID, "Tim", model.RoleChild)
	require.NoError(t, err)
	f.setBalance(t, otherKid, 100)

	_, err = f.ledger.ApproveRedemption(ctx, f.actor(otherParent), res.Redemption.ID)
	assert.ErrorIs(t, err, ErrNotFound, "redemptions of other families are invisible")

	_, err = f.ledger.RequestRedemption(ctx, f.actor(otherKid), reward.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rewards of other families are invisible")
	assert.Equal(t, 100, f.balance(t, otherKid))

	_, err = f.ledger.RequestRedemption(ctx, Actor{ProfileID: f.kid.ID, FamilyID: other.ID}, reward.ID)
	assert.ErrorIs(t, err, ErrForbidden, "token family must match the profile")

	_, err = f.ledger.ApproveRedemption(ctx, f.actor(f.parent), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 30)
	f.setBalance(t, f.kid, 100)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, attempts-3, insufficient)
	assert.Equal(t, 10, f.balance(t, f.kid))

	views, err := f.rewards.ListRedemptionViews(ctx, f.family.ID, &f.kid.ID)
	require.NoError(t, err)
	assert.Len(t, views, 3)
}

func TestReserveRejectRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.setBalance(t, f.kid, 90)

	for _, cost := range []int{10, 45, 90} {
		reward := f.reward(t, cost)
		res, err := f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
		require.NoError(t, err)
		_, err = f.ledger.RejectRedemption(ctx, f.actor(f.parent), res.Redemption.ID)
		require.NoError(t, err)
		assert.Equal(t, 90, f.balance(t, f.kid), "cost %d", cost)
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "ok", Code(nil))
	assert.Equal(t, "insufficient_balance", Code(ErrInsufficientBalance))
	assert.Equal(t, "invalid_state", Code(errors.Join(errors.New("x"), ErrInvalidState)))
	assert.Equal(t, "forbidden", Code(ErrForbidden))
	assert.Equal(t, "not_found", Code(ErrNotFound))
	assert.Equal(t, "internal", Code(errors.New("boom")))
}
