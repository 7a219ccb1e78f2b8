// Package ledger owns every write to Profile.balance. Each operation runs as a
// single transaction; the database opens transactions with BEGIN IMMEDIATE, so
// the read-check-write inside is serialized against other writers.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/famhub/internal/metrics"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger.With("component", "ledger")}
}

// Actor is the authenticated caller. Its role is not trusted from the token;
// it is re-read from the profile row inside each transaction.
type Actor struct {
	ProfileID string
	FamilyID  string
}

// txStores are the stores bound to one transaction.
type txStores struct {
	profiles *store.ProfileStore
	rewards  *store.RewardStore
	chores   *store.ChoreStore
}

func (l *Ledger) inTx(ctx context.Context, op string, fn func(s txStores) error) (err error) {
	defer func() {
		metrics.LedgerOps.WithLabelValues(op, Code(err)).Inc()
	}()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer tx.Rollback()

	s := txStores{
		profiles: store.NewProfileStore(tx),
		rewards:  store.NewRewardStore(tx),
		chores:   store.NewChoreStore(tx),
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

// loadActor resolves the caller's profile within its family. An unknown
// caller is forbidden rather than not found.
func loadActor(ctx context.Context, s txStores, a Actor) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, a.FamilyID, a.ProfileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrForbidden
	}
	return p, nil
}
