package client

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/ledger"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/server"
	"github.com/dukerupert/famhub/internal/store"
	"github.com/dukerupert/famhub/internal/websocket"
)

type family struct {
	srv    *server.Server
	db     *sql.DB
	url    string
	parent *Client
	kid    *Client
	me     *model.Profile
	kidMe  *model.Profile
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFamily(t *testing.T) *family {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := server.New(db, server.Config{Tokens: auth.NewTokens("client-test-secret", time.Hour)}, quietLogger())
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)

	ctx := context.Background()
	anon := New(hs.URL, "", hs.Client())
	sess, err := anon.CreateFamily(ctx, "Lopez", "Ana")
	require.NoError(t, err)
	parent := anon.WithToken(sess.Token)

	kidProfile, err := parent.CreateProfile(ctx, "Leo", model.RoleChild)
	require.NoError(t, err)
	kidSess, err := parent.SwitchSession(ctx, kidProfile.ID, "")
	require.NoError(t, err)

	return &family{
		srv:    srv,
		db:     db,
		url:    hs.URL,
		parent: parent,
		kid:    parent.WithToken(kidSess.Token),
		me:     sess.Profile,
		kidMe:  kidSess.Profile,
	}
}

func TestLedgerErrorsUnwrap(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	reward, err := f.parent.CreateReward(ctx, "Movie night", 50, "film")
	require.NoError(t, err)

	_, err = f.kid.Redeem(ctx, reward.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	_, err = f.kid.CreateChore(ctx, ChoreInput{Title: "Sweep", Points: 5})
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	_, err = f.parent.Approve(ctx, "no-such-redemption")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.parent.CreateChore(ctx, ChoreInput{Title: "", Points: 5})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_request", apiErr.Code)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestEarnAndRedeem(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	chore, err := f.parent.CreateChore(ctx, ChoreInput{Title: "Dishes", Points: 30})
	require.NoError(t, err)

	res, err := f.kid.ToggleChore(ctx, chore.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Chore.AssignedTo)
	assert.Equal(t, f.kidMe.ID, *res.Chore.AssignedTo)
	assert.Equal(t, 30, res.Points)
	require.NotNil(t, res.Profile)
	assert.Equal(t, 30, res.Profile.Balance)

	reward, err := f.parent.CreateReward(ctx, "Ice cream", 20, "")
	require.NoError(t, err)

	red, err := f.kid.Redeem(ctx, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionPending, red.Redemption.Status)
	assert.Equal(t, 10, red.Kid.Balance)

	_, err = f.kid.Approve(ctx, red.Redemption.ID)
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	done, err := f.parent.Approve(ctx, red.Redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionApproved, done.Redemption.Status)

	_, err = f.parent.Reject(ctx, red.Redemption.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	me, err := f.kid.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, me.Balance)
}

func TestTransientErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"db unavailable","code":"internal"}`)
	}))
	defer failing.Close()

	_, err := New(failing.URL, "tok", nil).Chores(context.Background())
	assert.ErrorIs(t, err, ErrTransient)

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	_, err = New(downURL, "tok", nil).Chores(context.Background())
	assert.ErrorIs(t, err, ErrTransient)
}

func TestGamesAndNotes(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	_, err := f.kid.RecordScore(ctx, "memory-match", 3, 120)
	require.NoError(t, err)
	p, err := f.kid.Progress(ctx, "memory-match")
	require.NoError(t, err)
	assert.Equal(t, 3, p.HighestLevel)
	assert.Equal(t, 4, p.NextLevel)

	n, err := f.kid.AddNote(ctx, "Soccer at 5", "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultNoteColor, n.Color)

	n, err = f.parent.UpdateNote(ctx, n.ID, "Soccer at 6", "blue")
	require.NoError(t, err)
	assert.Equal(t, "blue", n.Color)

	require.NoError(t, f.parent.DeleteNote(ctx, n.ID))
	assert.ErrorIs(t, f.parent.DeleteNote(ctx, n.ID), ledger.ErrNotFound)
}

func TestChoreFeedFollowsOtherClients(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	feed, err := f.kid.ChoreFeed(ctx, nil)
	require.NoError(t, err)
	defer feed.Close()
	assert.Equal(t, 0, feed.Len())

	c, err := f.parent.CreateChore(ctx, ChoreInput{Title: "Feed the cat", Points: 5})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return feed.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.parent.DeleteChore(ctx, c.ID))
	require.Eventually(t, func() bool { return feed.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestToggleChoreMutationClaims(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	c, err := f.parent.CreateChore(ctx, ChoreInput{Title: "Trash", Points: 7})
	require.NoError(t, err)

	feed, err := f.kid.ChoreFeed(ctx, nil)
	require.NoError(t, err)
	defer feed.Close()

	got, err := feed.Apply(ctx, f.kid.ToggleChoreMutation(*c, f.kidMe.ID))
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.AwardedTo)
	assert.Equal(t, f.kidMe.ID, *got.AwardedTo)

	local, ok := feed.Get(c.ID)
	require.True(t, ok)
	assert.True(t, local.IsCompleted)

	me, err := f.kid.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, me.Balance)
}

func TestGroceryPlaceholderKeepsOneCopy(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	feed, err := f.parent.GroceryFeed(ctx, nil)
	require.NoError(t, err)
	defer feed.Close()

	row, err := feed.Apply(ctx, f.parent.AddGroceryMutation(f.me.FamilyID, f.me.ID, "Milk", "1 gal"))
	require.NoError(t, err)
	assert.Equal(t, "Dairy", row.Category)

	// the realtime echo of the insert must not add a second entry
	time.Sleep(100 * time.Millisecond)
	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, row.ID, items[0].ID)

	_, err = feed.Apply(ctx, f.parent.SetPurchasedMutation(row.ID, true))
	require.NoError(t, err)
	n, err := f.parent.ClearPurchased(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return feed.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteGroceryMutationRestoresOnFailure(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	g, err := f.parent.AddGrocery(ctx, GroceryInput{ItemName: "Bread"})
	require.NoError(t, err)

	feed, err := f.parent.GroceryFeed(ctx, nil)
	require.NoError(t, err)
	defer feed.Close()
	require.Equal(t, 1, feed.Len())

	// a client for another family cannot see the row, so the server says 404
	other, err := New(f.url, "", nil).CreateFamily(ctx, "Other", "Zed")
	require.NoError(t, err)
	stranger := f.parent.WithToken(other.Token)

	_, err = feed.Apply(ctx, stranger.DeleteGroceryMutation(g.ID))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, ok := feed.Get(g.ID)
	assert.True(t, ok)
}

func TestFeedRefetchesAfterReconnect(t *testing.T) {
	f := newFamily(t)
	ctx := context.Background()

	feed, err := OpenFeed(ctx, f.parent, FeedConfig[model.Note]{
		Table:      websocket.TableNotes,
		Key:        func(n model.Note) string { return n.ID },
		Fetch:      f.parent.Notes,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	defer feed.Close()

	// written behind the server's back, so no event is published
	_, err = store.NewNoteStore(f.db).Create(ctx, f.me.FamilyID, "Dentist Tuesday", model.DefaultNoteColor, &f.me.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, feed.Len())

	f.srv.Hub().DisconnectAll()
	require.Eventually(t, func() bool { return feed.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestOpenFeedRefusedToken(t *testing.T) {
	f := newFamily(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.parent.WithToken("not-a-token").NoteFeed(ctx, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestGroupByCategory(t *testing.T) {
	names, groups := GroupByCategory([]model.Grocery{
		{ID: "1", ItemName: "Apples", Category: "Produce"},
		{ID: "2", ItemName: "Cheese", Category: "Dairy"},
		{ID: "3", ItemName: "Mystery"},
		{ID: "4", ItemName: "Pears", Category: "Produce"},
	})
	assert.Equal(t, []string{"Dairy", "Other", "Produce"}, names)
	require.Len(t, groups["Produce"], 2)
	assert.Equal(t, "1", groups["Produce"][0].ID)
	assert.Equal(t, "4", groups["Produce"][1].ID)
}

func TestSameGrocery(t *testing.T) {
	mom, dad := "mom", "dad"
	ph := model.Grocery{ID: "local-1", FamilyID: "fam-a", ItemName: " Milk ", Quantity: "2 ", AddedBy: &mom}

	tests := []struct {
		name string
		row  model.Grocery
		want bool
	}{
		{"stored form", model.Grocery{ID: "g1", FamilyID: "fam-a", ItemName: "milk", Quantity: "2", AddedBy: &mom}, true},
		{"other family", model.Grocery{ID: "g1", FamilyID: "fam-b", ItemName: "Milk", Quantity: "2", AddedBy: &mom}, false},
		{"other author", model.Grocery{ID: "g1", FamilyID: "fam-a", ItemName: "Milk", Quantity: "2", AddedBy: &dad}, false},
		{"no author", model.Grocery{ID: "g1", FamilyID: "fam-a", ItemName: "Milk", Quantity: "2"}, false},
		{"other quantity", model.Grocery{ID: "g1", FamilyID: "fam-a", ItemName: "Milk", Quantity: "3", AddedBy: &mom}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameGrocery(ph, tt.row); got != tt.want {
				t.Errorf("sameGrocery = %v, want %v", got, tt.want)
			}
		})
	}
}
