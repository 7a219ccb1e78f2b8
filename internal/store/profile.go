package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type ProfileStore struct {
	db DBTX
}

func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(sc scanner) (*model.Profile, error) {
	var p model.Profile
	var role string
	err := sc.Scan(
		&p.ID, &p.FamilyID, &p.DisplayName, &role, &p.Balance,
		&p.AvatarURL, &p.HasPIN, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}

const profileCols = `id, family_id, display_name, role, balance, avatar_url, pin IS NOT NULL, created_at, updated_at`

func (s *ProfileStore) Create(ctx context.Context, familyID, displayName string, role model.Role) (*model.Profile, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, family_id, display_name, role) VALUES (?, ?, ?, ?)`,
		id, familyID, displayName, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID loads a profile regardless of family. Callers that act on behalf of
// a user should use Get, which is family scoped.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Get(ctx context.Context, familyID, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id = ? AND family_id = ?`, id, familyID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// List returns the family's profiles, parents first, then by name.
func (s *ProfileStore) List(ctx context.Context, familyID string) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE family_id = ?
		 ORDER BY CASE role WHEN 'parent' THEN 0 ELSE 1 END, display_name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// ListParents returns the parents of a family.
func (s *ProfileStore) ListParents(ctx context.Context, familyID string) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE family_id = ? AND role = 'parent' ORDER BY display_name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateDisplay changes the owner-editable fields. Balance is not writable
// here.
func (s *ProfileStore) UpdateDisplay(ctx context.Context, familyID, id, displayName, avatarURL string) (*model.Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET display_name = ?, avatar_url = ? WHERE id = ? AND family_id = ?`,
		displayName, avatarURL, id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

// Debit subtracts amount from the balance only if the balance covers it. It
// reports whether the row was changed.
func (s *ProfileStore) Debit(ctx context.Context, id string, amount int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND balance >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *ProfileStore) Credit(ctx context.Context, id string, amount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Revoke subtracts up to amount without letting the balance go negative and
// returns how much was actually taken.
func (s *ProfileStore) Revoke(ctx context.Context, id string, amount int) (int, error) {
	var before int
	if err := s.db.QueryRowContext(ctx, `SELECT balance FROM profiles WHERE id = ?`, id).Scan(&before); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("query balance: %w", err)
	}
	taken := min(before, amount)
	if taken == 0 {
		return 0, nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		taken, id,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke balance: %w", err)
	}
	return taken, nil
}

func (s *ProfileStore) SetPIN(ctx context.Context, familyID, id, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET pin = ? WHERE id = ? AND family_id = ?`, hashedPIN, id, familyID)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *ProfileStore) ClearPIN(ctx context.Context, familyID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET pin = NULL WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns the stored bcrypt hash, or "" when no PIN is set.
func (s *ProfileStore) GetPINHash(ctx context.Context, familyID, id string) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT pin FROM profiles WHERE id = ? AND family_id = ?`, id, familyID).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("profile not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}
