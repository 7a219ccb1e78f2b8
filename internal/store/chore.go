package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(sc scanner) (*model.Chore, error) {
	var c model.Chore
	var completed int
	var assignedTo, awardedTo sql.NullString

	err := sc.Scan(
		&c.ID, &c.FamilyID, &c.Title, &c.Points, &completed,
		&assignedTo, &awardedTo, &c.AwardedPoints, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.IsCompleted = completed != 0
	c.AssignedTo = stringPtr(assignedTo)
	c.AwardedTo = stringPtr(awardedTo)
	return &c, nil
}

const choreCols = `id, family_id, title, points, is_completed, assigned_to, awarded_to, awarded_points, created_at, updated_at`

func (s *ChoreStore) Create(ctx context.Context, familyID, title string, points int, assignedTo *string) (*model.Chore, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (id, family_id, title, points, assigned_to) VALUES (?, ?, ?, ?, ?)`,
		id, familyID, title, points, nullString(assignedTo),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *ChoreStore) Get(ctx context.Context, familyID, id string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE id = ? AND family_id = ?`, id, familyID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// List returns the family's chores, newest first.
func (s *ChoreStore) List(ctx context.Context, familyID string) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE family_id = ? ORDER BY created_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) ListByAssignee(ctx context.Context, familyID, profileID string) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE family_id = ? AND assigned_to = ? ORDER BY created_at DESC, id DESC`,
		familyID, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores by assignee: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Update edits title and points. An assignee can be supplied, but it only
// lands when the chore is still unassigned: assignment is set once.
func (s *ChoreStore) Update(ctx context.Context, familyID, id, title string, points int, assignedTo *string) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title = ?, points = ?, assigned_to = COALESCE(assigned_to, ?)
		 WHERE id = ? AND family_id = ?`,
		title, points, nullString(assignedTo), id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

// SetCompletion writes the completion flag together with the assignee, the
// profile credited for this completion and the amount credited.
func (s *ChoreStore) SetCompletion(ctx context.Context, familyID, id string, completed bool, assignedTo, awardedTo *string, awardedPoints int) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET is_completed = ?, assigned_to = ?, awarded_to = ?, awarded_points = ?
		 WHERE id = ? AND family_id = ?`,
		boolInt(completed), nullString(assignedTo), nullString(awardedTo), awardedPoints, id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("set chore completion: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *ChoreStore) Delete(ctx context.Context, familyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}
