package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type GameScoreStore struct {
	db DBTX
}

func NewGameScoreStore(db DBTX) *GameScoreStore {
	return &GameScoreStore{db: db}
}

const gameScoreCols = `id, family_id, profile_id, game_id, level, points, created_at`

// Record appends one score row. Every attempt is kept.
func (s *GameScoreStore) Record(ctx context.Context, familyID, profileID, gameID string, level, points int) (*model.GameScore, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_scores (id, family_id, profile_id, game_id, level, points) VALUES (?, ?, ?, ?, ?, ?)`,
		id, familyID, profileID, gameID, level, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert game score: %w", err)
	}

	var g model.GameScore
	err = s.db.QueryRowContext(ctx,
		`SELECT `+gameScoreCols+` FROM game_scores WHERE id = ?`, id,
	).Scan(&g.ID, &g.FamilyID, &g.ProfileID, &g.GameID, &g.Level, &g.Points, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get game score: %w", err)
	}
	return &g, nil
}

// HighestLevel returns the best level the profile has recorded for the game,
// or 0 when there are no rows.
func (s *GameScoreStore) HighestLevel(ctx context.Context, profileID, gameID string) (int, error) {
	var level sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(level) FROM game_scores WHERE profile_id = ? AND game_id = ?`,
		profileID, gameID,
	).Scan(&level)
	if err != nil {
		return 0, fmt.Errorf("highest level: %w", err)
	}
	return int(level.Int64), nil
}
