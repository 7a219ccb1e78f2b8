package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleChoreClaimsAndCredits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.chores.Create(ctx, f.family.ID, "Feed the cat", 15, nil)
	require.NoError(t, err)

	res, err := f.ledger.ToggleChore(ctx, f.actor(f.kid), c.ID)
	require.NoError(t, err)
	assert.True(t, res.Chore.IsCompleted)
	require.NotNil(t, res.Chore.AssignedTo)
	assert.Equal(t, f.kid.ID, *res.Chore.AssignedTo)
	require.NotNil(t, res.Chore.AwardedTo)
	assert.Equal(t, f.kid.ID, *res.Chore.AwardedTo)
	assert.Equal(t, 15, res.Points)
	require.NotNil(t, res.Profile)
	assert.Equal(t, 15, res.Profile.Balance)

	undo, err := f.ledger.ToggleChore(ctx, f.actor(f.parent), c.ID)
	require.NoError(t, err)
	assert.False(t, undo.Chore.IsCompleted)
	require.NotNil(t, undo.Chore.AssignedTo, "undo never un-claims")
	assert.Equal(t, f.kid.ID, *undo.Chore.AssignedTo)
	assert.Nil(t, undo.Chore.AwardedTo)
	assert.Equal(t, -15, undo.Points)
	assert.Equal(t, 0, f.balance(t, f.kid))

	redo, err := f.ledger.ToggleChore(ctx, f.actor(f.parent), c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.kid.ID, *redo.Chore.AwardedTo, "re-completion credits the claimant")
	assert.Equal(t, 15, f.balance(t, f.kid))
	assert.Equal(t, 0, f.balance(t, f.parent))
}

func TestToggleChoreUndoClampsAtZero(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.reward(t, 20)

	c, err := f.chores.Create(ctx, f.family.ID, "Vacuum", 20, &f.kid.ID)
	require.NoError(t, err)

	_, err = f.ledger.ToggleChore(ctx, f.actor(f.kid), c.ID)
	require.NoError(t, err)
	_, err = f.ledger.RequestRedemption(ctx, f.actor(f.kid), reward.ID)
	require.NoError(t, err)
	require.Equal(t, 0, f.balance(t, f.kid))

	undo, err := f.ledger.ToggleChore(ctx, f.actor(f.kid), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, undo.Points)
	assert.Equal(t, 0, f.balance(t, f.kid))
}

func TestToggleChoreOtherFamily(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.chores.Create(ctx, f.family.ID, "Dishes", 5, nil)
	require.NoError(t, err)

	_, err = f.ledger.ToggleChore(ctx, Actor{ProfileID: f.kid.ID, FamilyID: f.family.ID}, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.ToggleChore(ctx, Actor{ProfileID: "stranger", FamilyID: f.family.ID}, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestToggleChoreUndoRevokesWhatWasCredited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lowered, err := f.chores.Create(ctx, f.family.ID, "Rake leaves", 10, &f.kid.ID)
	require.NoError(t, err)
	raised, err := f.chores.Create(ctx, f.family.ID, "Fold towels", 5, &f.kid.ID)
	require.NoError(t, err)

	_, err = f.ledger.ToggleChore(ctx, f.actor(f.kid), lowered.ID)
	require.NoError(t, err)
	_, err = f.ledger.ToggleChore(ctx, f.actor(f.kid), raised.ID)
	require.NoError(t, err)
	require.Equal(t, 15, f.balance(t, f.kid))

	_, err = f.chores.Update(ctx, f.family.ID, lowered.ID, lowered.Title, 1, nil)
	require.NoError(t, err)
	_, err = f.chores.Update(ctx, f.family.ID, raised.ID, raised.Title, 50, nil)
	require.NoError(t, err)

	undo, err := f.ledger.ToggleChore(ctx, f.actor(f.parent), lowered.ID)
	require.NoError(t, err)
	assert.Equal(t, -10, undo.Points)
	assert.Zero(t, undo.Chore.AwardedPoints)
	assert.Equal(t, 5, f.balance(t, f.kid))

	undo, err = f.ledger.ToggleChore(ctx, f.actor(f.parent), raised.ID)
	require.NoError(t, err)
	assert.Equal(t, -5, undo.Points)
	assert.Equal(t, 0, f.balance(t, f.kid))

	// re-completion credits the chore's points as they stand now
	redo, err := f.ledger.ToggleChore(ctx, f.actor(f.kid), raised.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, redo.Chore.AwardedPoints)
	assert.Equal(t, 50, f.balance(t, f.kid))
}
