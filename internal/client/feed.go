package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/famhub/internal/chore"
	"github.com/dukerupert/famhub/internal/grocery"
	"github.com/dukerupert/famhub/internal/livelist"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/realtime"
	"github.com/dukerupert/famhub/internal/websocket"
)

// FeedConfig describes one live collection.
type FeedConfig[T any] struct {
	Table    string
	Key      func(T) string
	Less     func(a, b T) bool
	Fetch    func(ctx context.Context) ([]T, error)
	OnChange func(items []T)
	// Matches pairs a realtime row with the placeholder it replaces.
	Matches func(placeholder, row T) bool

	MinBackoff time.Duration
	MaxBackoff time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Feed is a collection kept current by the realtime subscription for its
// table. It is refetched after every reconnect.
type Feed[T any] struct {
	*livelist.Collection[T]

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenFeed subscribes to cfg.Table as the holder of c's token and returns
// once the first snapshot is loaded. The feed runs until Close.
func OpenFeed[T any](ctx context.Context, c *Client, cfg FeedConfig[T]) (*Feed[T], error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("table", cfg.Table)

	coll := livelist.New(livelist.Config[T]{
		Key:      cfg.Key,
		Less:     cfg.Less,
		Fetch:    cfg.Fetch,
		OnChange: cfg.OnChange,
		Matches:  cfg.Matches,
		Logger:   logger,
	})

	ready := make(chan error, 1)
	opened := false
	sub := realtime.NewSubscriber(realtime.Config{
		ServerURL: c.baseURL,
		Token:     c.token,
		Table:     cfg.Table,
		OnConnect: func(ctx context.Context) {
			if !opened {
				opened = true
				ready <- coll.Open(ctx)
				return
			}
			if err := coll.Refetch(ctx); err != nil && !errors.Is(err, livelist.ErrClosed) {
				logger.Warn("refetch after reconnect failed", "error", err)
			}
		},
		OnMessage: func(msg websocket.Message) {
			coll.MergeWire(string(msg.EventType), msg.Record)
		},
		MinBackoff: cfg.MinBackoff,
		MaxBackoff: cfg.MaxBackoff,
		HTTPClient: cfg.HTTPClient,
		Logger:     logger,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{Collection: coll, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := sub.Run(runCtx); err != nil {
			logger.Error("subscription stopped", "error", err)
			select {
			case ready <- err:
			default:
			}
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			f.Close()
			return nil, err
		}
		return f, nil
	case <-ctx.Done():
		f.Close()
		return nil, ctx.Err()
	}
}

// Close stops the subscription and discards the collection.
func (f *Feed[T]) Close() {
	f.cancel()
	<-f.done
	f.Collection.Close()
}

func newestFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}

// ChoreFeed opens the family's chore list, newest first.
func (c *Client) ChoreFeed(ctx context.Context, onChange func([]model.Chore)) (*Feed[model.Chore], error) {
	return OpenFeed(ctx, c, FeedConfig[model.Chore]{
		Table: websocket.TableChores,
		Key:   func(ch model.Chore) string { return ch.ID },
		Less: func(a, b model.Chore) bool {
			return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
		},
		Fetch:    c.Chores,
		OnChange: onChange,
	})
}

// GroceryFeed opens the family's shopping list, newest first.
func (c *Client) GroceryFeed(ctx context.Context, onChange func([]model.Grocery)) (*Feed[model.Grocery], error) {
	return OpenFeed(ctx, c, FeedConfig[model.Grocery]{
		Table: websocket.TableGroceries,
		Key:   func(g model.Grocery) string { return g.ID },
		Less: func(a, b model.Grocery) bool {
			return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
		},
		Fetch:    c.Groceries,
		OnChange: onChange,
		Matches:  sameGrocery,
	})
}

// sameGrocery reports whether row is the stored copy of a placeholder built
// by AddGroceryMutation.
func sameGrocery(ph, row model.Grocery) bool {
	return ph.FamilyID == row.FamilyID &&
		ptrEqual(ph.AddedBy, row.AddedBy) &&
		strings.EqualFold(strings.TrimSpace(ph.ItemName), row.ItemName) &&
		strings.TrimSpace(ph.Quantity) == row.Quantity
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *Client) NoteFeed(ctx context.Context, onChange func([]model.Note)) (*Feed[model.Note], error) {
	return OpenFeed(ctx, c, FeedConfig[model.Note]{
		Table: websocket.TableNotes,
		Key:   func(n model.Note) string { return n.ID },
		Less: func(a, b model.Note) bool {
			return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
		},
		Fetch:    c.Notes,
		OnChange: onChange,
	})
}

// RewardFeed opens the reward catalog, cheapest first.
func (c *Client) RewardFeed(ctx context.Context, onChange func([]model.Reward)) (*Feed[model.Reward], error) {
	return OpenFeed(ctx, c, FeedConfig[model.Reward]{
		Table: websocket.TableRewards,
		Key:   func(r model.Reward) string { return r.ID },
		Less: func(a, b model.Reward) bool {
			if a.Cost != b.Cost {
				return a.Cost < b.Cost
			}
			return a.Name < b.Name
		},
		Fetch:    c.Rewards,
		OnChange: onChange,
	})
}

func (c *Client) RedemptionFeed(ctx context.Context, onChange func([]model.RedemptionView)) (*Feed[model.RedemptionView], error) {
	return OpenFeed(ctx, c, FeedConfig[model.RedemptionView]{
		Table: websocket.TableRedemptions,
		Key:   func(v model.RedemptionView) string { return v.ID },
		Less: func(a, b model.RedemptionView) bool {
			return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
		},
		Fetch:    c.Redemptions,
		OnChange: onChange,
	})
}

// ToggleChoreMutation flips ch on screen at once, claiming it for actorID
// the way the server will, then sends the toggle.
func (c *Client) ToggleChoreMutation(ch model.Chore, actorID string) livelist.Mutation[model.Chore] {
	return livelist.Update(ch.ID,
		func(cur model.Chore) model.Chore { return chore.Apply(cur, actorID) },
		func(ctx context.Context, _ model.Chore) (model.Chore, error) {
			res, err := c.ToggleChore(ctx, ch.ID)
			if err != nil {
				return model.Chore{}, err
			}
			return *res.Chore, nil
		})
}

// AddGroceryMutation shows the item under a temporary id, categorized
// locally, until the server row arrives.
func (c *Client) AddGroceryMutation(familyID, addedBy, name, quantity string) livelist.Mutation[model.Grocery] {
	now := time.Now().UTC()
	placeholder := model.Grocery{
		ID:        "local-" + uuid.NewString(),
		FamilyID:  familyID,
		ItemName:  name,
		Quantity:  quantity,
		Category:  grocery.Categorize(name),
		AddedBy:   &addedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return livelist.InsertPlaceholder(placeholder, func(ctx context.Context) (model.Grocery, error) {
		g, err := c.AddGrocery(ctx, GroceryInput{ItemName: name, Quantity: quantity})
		if err != nil {
			return model.Grocery{}, err
		}
		return *g, nil
	})
}

// SetPurchasedMutation checks or unchecks an item.
func (c *Client) SetPurchasedMutation(id string, purchased bool) livelist.Mutation[model.Grocery] {
	return livelist.Update(id,
		func(g model.Grocery) model.Grocery {
			g.IsPurchased = purchased
			return g
		},
		func(ctx context.Context, _ model.Grocery) (model.Grocery, error) {
			g, err := c.UpdateGrocery(ctx, id, GroceryInput{IsPurchased: &purchased})
			if err != nil {
				return model.Grocery{}, err
			}
			return *g, nil
		})
}

// DeleteGroceryMutation removes an item on screen, restoring it if the server
// refuses.
func (c *Client) DeleteGroceryMutation(id string) livelist.Mutation[model.Grocery] {
	return livelist.Delete[model.Grocery](id, func(ctx context.Context) error {
		return c.DeleteGrocery(ctx, id)
	})
}

// AddNoteMutation posts a note without a placeholder.
func (c *Client) AddNoteMutation(content, color string) livelist.Mutation[model.Note] {
	return livelist.Insert(func(ctx context.Context) (model.Note, error) {
		n, err := c.AddNote(ctx, content, color)
		if err != nil {
			return model.Note{}, err
		}
		return *n, nil
	})
}

// GroupByCategory splits items into aisles, each list in feed order, with
// aisle names sorted.
func GroupByCategory(items []model.Grocery) ([]string, map[string][]model.Grocery) {
	groups := make(map[string][]model.Grocery)
	for _, g := range items {
		cat := g.Category
		if cat == "" {
			cat = grocery.Other
		}
		groups[cat] = append(groups[cat], g)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups
}
