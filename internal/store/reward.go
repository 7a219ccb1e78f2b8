package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward methods ---

func scanReward(sc scanner) (*model.Reward, error) {
	var r model.Reward
	if err := sc.Scan(&r.ID, &r.FamilyID, &r.Name, &r.Cost, &r.Icon, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, family_id, name, cost, icon, created_at`

func (s *RewardStore) Create(ctx context.Context, familyID, name string, cost int, icon string) (*model.Reward, error) {
	if icon == "" {
		icon = model.DefaultRewardIcon
	}
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (id, family_id, name, cost, icon) VALUES (?, ?, ?, ?, ?)`,
		id, familyID, name, cost, icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *RewardStore) Get(ctx context.Context, familyID, id string) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+rewardCols+` FROM rewards WHERE id = ? AND family_id = ?`, id, familyID)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns the family's rewards, cheapest first.
func (s *RewardStore) List(ctx context.Context, familyID string) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY cost ASC, name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Delete(ctx context.Context, familyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- Redemption methods ---

func scanRedemption(sc scanner) (*model.Redemption, error) {
	var r model.Redemption
	var rewardID sql.NullString
	var status string

	err := sc.Scan(
		&r.ID, &r.FamilyID, &r.KidID, &rewardID, &r.PointsReserved,
		&status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.RewardID = stringPtr(rewardID)
	r.Status = model.RedemptionStatus(status)
	return &r, nil
}

const redemptionCols = `id, family_id, kid_id, reward_id, points_reserved, status, created_at, updated_at`

// CreateRedemption inserts a pending redemption. Only the ledger calls this,
// inside the transaction that debits the child.
func (s *RewardStore) CreateRedemption(ctx context.Context, familyID, kidID, rewardID string, pointsReserved int) (*model.Redemption, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redemptions (id, family_id, kid_id, reward_id, points_reserved, status)
		 VALUES (?, ?, ?, ?, ?, 'pending')`,
		id, familyID, kidID, rewardID, pointsReserved,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	return s.GetRedemption(ctx, familyID, id)
}

func (s *RewardStore) GetRedemption(ctx context.Context, familyID, id string) (*model.Redemption, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+redemptionCols+` FROM redemptions WHERE id = ? AND family_id = ?`, id, familyID)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// TransitionRedemption moves a redemption from one status to another. It
// reports false when the row was not in the expected status.
func (s *RewardStore) TransitionRedemption(ctx context.Context, familyID, id string, from, to model.RedemptionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND family_id = ? AND status = ?`,
		string(to), id, familyID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition redemption: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

const redemptionViewQuery = `
	SELECT r.id, r.family_id, r.kid_id, r.reward_id, r.points_reserved, r.status, r.created_at, r.updated_at,
	       COALESCE(rw.name, ''), COALESCE(rw.icon, ''), COALESCE(p.display_name, '')
	FROM redemptions r
	LEFT JOIN rewards rw ON rw.id = r.reward_id
	LEFT JOIN profiles p ON p.id = r.kid_id
	WHERE r.family_id = ?`

func scanRedemptionView(sc scanner) (*model.RedemptionView, error) {
	var v model.RedemptionView
	var rewardID sql.NullString
	var status string

	err := sc.Scan(
		&v.ID, &v.FamilyID, &v.KidID, &rewardID, &v.PointsReserved,
		&status, &v.CreatedAt, &v.UpdatedAt,
		&v.RewardName, &v.RewardIcon, &v.KidName,
	)
	if err != nil {
		return nil, err
	}

	v.RewardID = stringPtr(rewardID)
	v.Status = model.RedemptionStatus(status)
	return &v, nil
}

// ListRedemptionViews returns the family's redemptions joined with reward and
// child names, newest first. A non-nil kidID restricts the list to one child.
func (s *RewardStore) ListRedemptionViews(ctx context.Context, familyID string, kidID *string) ([]model.RedemptionView, error) {
	query := redemptionViewQuery
	args := []any{familyID}
	if kidID != nil {
		query += ` AND r.kid_id = ?`
		args = append(args, *kidID)
	}
	query += ` ORDER BY r.created_at DESC, r.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var views []model.RedemptionView
	for rows.Next() {
		v, err := scanRedemptionView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

func (s *RewardStore) GetRedemptionView(ctx context.Context, familyID, id string) (*model.RedemptionView, error) {
	row := s.db.QueryRowContext(ctx, redemptionViewQuery+` AND r.id = ?`, familyID, id)
	v, err := scanRedemptionView(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption view: %w", err)
	}
	return v, nil
}
