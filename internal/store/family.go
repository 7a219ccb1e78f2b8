package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/famhub/internal/model"
)

const secretKeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const secretKeyLength = 6

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db DBTX) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(sc scanner) (*model.Family, error) {
	var f model.Family
	if err := sc.Scan(&f.ID, &f.Name, &f.SecretKey, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, name, secret_key, created_at`

// Create inserts a family with a freshly generated invite key.
func (s *FamilyStore) Create(ctx context.Context, name string) (*model.Family, error) {
	key, err := GenerateSecretKey()
	if err != nil {
		return nil, err
	}
	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO families (id, name, secret_key) VALUES (?, ?, ?)`,
		id, name, key,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id string) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// GetBySecretKey looks a family up by its invite key. Keys are matched
// case-insensitively since people type them in by hand.
func (s *FamilyStore) GetBySecretKey(ctx context.Context, key string) (*model.Family, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE secret_key = ?`, key)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by key: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) Rename(ctx context.Context, id, name string) (*model.Family, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE families SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename family: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GenerateSecretKey returns a random invite key from an alphabet without
// look-alike characters.
func GenerateSecretKey() (string, error) {
	buf := make([]byte, secretKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	out := make([]byte, secretKeyLength)
	for i, b := range buf {
		out[i] = secretKeyAlphabet[int(b)%len(secretKeyAlphabet)]
	}
	return string(out), nil
}
