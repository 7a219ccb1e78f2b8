package store

import (
	"context"
	"testing"
)

func TestGameScoreHighestLevel(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	gs := NewGameScoreStore(db)
	ctx := context.Background()

	level, err := gs.HighestLevel(ctx, f.kid.ID, "memory")
	if err != nil {
		t.Fatalf("highest level: %v", err)
	}
	if level != 0 {
		t.Errorf("level = %d, want 0 with no rows", level)
	}

	for _, l := range []int{2, 5, 3} {
		if _, err := gs.Record(ctx, f.family.ID, f.kid.ID, "memory", l, l*10); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	gs.Record(ctx, f.family.ID, f.kid.ID, "snake", 9, 0)
	gs.Record(ctx, f.family.ID, f.parent.ID, "memory", 7, 0)

	level, err = gs.HighestLevel(ctx, f.kid.ID, "memory")
	if err != nil {
		t.Fatalf("highest level: %v", err)
	}
	if level != 5 {
		t.Errorf("level = %d, want 5", level)
	}
}
