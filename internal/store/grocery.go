package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type GroceryStore struct {
	db DBTX
}

func NewGroceryStore(db DBTX) *GroceryStore {
	return &GroceryStore{db: db}
}

func scanGrocery(sc scanner) (*model.Grocery, error) {
	var g model.Grocery
	var purchased int
	var addedBy sql.NullString

	err := sc.Scan(
		&g.ID, &g.FamilyID, &g.ItemName, &g.Quantity, &g.Category,
		&purchased, &addedBy, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.IsPurchased = purchased != 0
	g.AddedBy = stringPtr(addedBy)
	return &g, nil
}

const groceryCols = `id, family_id, item_name, quantity, category, is_purchased, added_by, created_at, updated_at`

func (s *GroceryStore) Create(ctx context.Context, familyID, itemName, quantity, category string, addedBy *string) (*model.Grocery, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groceries (id, family_id, item_name, quantity, category, added_by) VALUES (?, ?, ?, ?, ?, ?)`,
		id, familyID, itemName, quantity, category, nullString(addedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert grocery: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *GroceryStore) Get(ctx context.Context, familyID, id string) (*model.Grocery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groceryCols+` FROM groceries WHERE id = ? AND family_id = ?`, id, familyID)
	g, err := scanGrocery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grocery: %w", err)
	}
	return g, nil
}

// List returns the family's grocery items, newest first.
func (s *GroceryStore) List(ctx context.Context, familyID string) ([]model.Grocery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groceryCols+` FROM groceries WHERE family_id = ? ORDER BY created_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groceries: %w", err)
	}
	defer rows.Close()

	var items []model.Grocery
	for rows.Next() {
		g, err := scanGrocery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grocery: %w", err)
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

func (s *GroceryStore) Update(ctx context.Context, familyID, id, itemName, quantity, category string) (*model.Grocery, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE groceries SET item_name = ?, quantity = ?, category = ? WHERE id = ? AND family_id = ?`,
		itemName, quantity, category, id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update grocery: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *GroceryStore) SetPurchased(ctx context.Context, familyID, id string, purchased bool) (*model.Grocery, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE groceries SET is_purchased = ? WHERE id = ? AND family_id = ?`,
		boolInt(purchased), id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("set grocery purchased: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *GroceryStore) Delete(ctx context.Context, familyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groceries WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete grocery: %w", err)
	}
	return nil
}

// ClearPurchased removes every purchased item and returns the removed ids.
func (s *GroceryStore) ClearPurchased(ctx context.Context, familyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM groceries WHERE family_id = ? AND is_purchased = 1 RETURNING id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("clear purchased: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cleared id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
