package store

import (
	"context"
	"testing"

	"github.com/dukerupert/famhub/internal/model"
)

func TestNoteCRUD(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ns := NewNoteStore(db)
	ctx := context.Background()

	note, err := ns.Create(ctx, f.family.ID, "Dentist at 3", "", &f.parent.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if note.Color != model.DefaultNoteColor {
		t.Errorf("color = %q, want default", note.Color)
	}

	updated, err := ns.Update(ctx, f.family.ID, note.ID, "Dentist at 4", "blue")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "Dentist at 4" || updated.Color != "blue" {
		t.Errorf("updated = %+v", updated)
	}

	list, _ := ns.List(ctx, f.family.ID)
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}

	if err := ns.Delete(ctx, f.family.ID, note.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ns.Get(ctx, f.family.ID, note.ID); got != nil {
		t.Error("expected nil after delete")
	}
}

func TestNoteSurvivesAuthorDelete(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ns := NewNoteStore(db)
	ctx := context.Background()

	note, _ := ns.Create(ctx, f.family.ID, "Hi", "pink", &f.kid.ID)
	if _, err := db.Exec(`DELETE FROM profiles WHERE id = ?`, f.kid.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}

	got, err := ns.Get(ctx, f.family.ID, note.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AuthorID != nil {
		t.Errorf("note = %+v, want author cleared", got)
	}
}
