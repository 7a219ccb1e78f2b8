package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/famhub/internal/model"
)

type NoteStore struct {
	db DBTX
}

func NewNoteStore(db DBTX) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(sc scanner) (*model.Note, error) {
	var n model.Note
	var authorID sql.NullString

	if err := sc.Scan(&n.ID, &n.FamilyID, &n.Content, &n.Color, &authorID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}

	n.AuthorID = stringPtr(authorID)
	return &n, nil
}

const noteCols = `id, family_id, content, color, author_id, created_at, updated_at`

func (s *NoteStore) Create(ctx context.Context, familyID, content, color string, authorID *string) (*model.Note, error) {
	if color == "" {
		color = model.DefaultNoteColor
	}
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, family_id, content, color, author_id) VALUES (?, ?, ?, ?, ?)`,
		id, familyID, content, color, nullString(authorID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *NoteStore) Get(ctx context.Context, familyID, id string) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteCols+` FROM notes WHERE id = ? AND family_id = ?`, id, familyID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// List returns the family's notes, newest first.
func (s *NoteStore) List(ctx context.Context, familyID string) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteCols+` FROM notes WHERE family_id = ? ORDER BY created_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *NoteStore) Update(ctx context.Context, familyID, id, content, color string) (*model.Note, error) {
	if color == "" {
		color = model.DefaultNoteColor
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, color = ? WHERE id = ? AND family_id = ?`,
		content, color, id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return s.Get(ctx, familyID, id)
}

func (s *NoteStore) Delete(ctx context.Context, familyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
