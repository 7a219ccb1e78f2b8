package store

import (
	"context"
	"testing"
)

func TestChoreCRUD(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	cs := NewChoreStore(db)
	ctx := context.Background()

	chore, err := cs.Create(ctx, f.family.ID, "Dishes", 10, nil)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if chore.Title != "Dishes" || chore.Points != 10 {
		t.Errorf("chore = %+v", chore)
	}
	if chore.IsCompleted {
		t.Error("new chore should not be completed")
	}
	if chore.AssignedTo != nil {
		t.Error("new chore should be unassigned")
	}

	updated, err := cs.Update(ctx, f.family.ID, chore.ID, "Dishes and counters", 15, &f.kid.ID)
	if err != nil {
		t.Fatalf("update chore: %v", err)
	}
	if updated.Title != "Dishes and counters" || updated.Points != 15 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != f.kid.ID {
		t.Errorf("assigned_to = %v, want %s", updated.AssignedTo, f.kid.ID)
	}

	if err := cs.Delete(ctx, f.family.ID, chore.ID); err != nil {
		t.Fatalf("delete chore: %v", err)
	}
	got, err := cs.Get(ctx, f.family.ID, chore.ID)
	if err != nil {
		t.Fatalf("get deleted chore: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestChoreAssignmentIsSetOnce(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	cs := NewChoreStore(db)
	ctx := context.Background()

	chore, _ := cs.Create(ctx, f.family.ID, "Trash", 5, &f.kid.ID)

	updated, err := cs.Update(ctx, f.family.ID, chore.ID, "Trash", 5, &f.parent.ID)
	if err != nil {
		t.Fatalf("update chore: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != f.kid.ID {
		t.Errorf("assigned_to changed to %v, want %s", updated.AssignedTo, f.kid.ID)
	}
}

func TestChoreSetCompletion(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	cs := NewChoreStore(db)
	ctx := context.Background()

	chore, _ := cs.Create(ctx, f.family.ID, "Laundry", 20, nil)

	done, err := cs.SetCompletion(ctx, f.family.ID, chore.ID, true, &f.kid.ID, &f.kid.ID, 20)
	if err != nil {
		t.Fatalf("set completion: %v", err)
	}
	if !done.IsCompleted {
		t.Error("expected completed")
	}
	if done.AwardedTo == nil || *done.AwardedTo != f.kid.ID {
		t.Errorf("awarded_to = %v", done.AwardedTo)
	}
	if done.AwardedPoints != 20 {
		t.Errorf("awarded_points = %d, want 20", done.AwardedPoints)
	}

	mine, err := cs.ListByAssignee(ctx, f.family.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("len = %d, want 1", len(mine))
	}
}

func TestChoreListNewestFirstAndScoped(t *testing.T) {
	db := setupTestDB(t)
	a := seedFamily(t, db, "A")
	b := seedFamily(t, db, "B")
	cs := NewChoreStore(db)
	ctx := context.Background()

	old, _ := cs.Create(ctx, a.family.ID, "Old", 1, nil)
	recent, _ := cs.Create(ctx, a.family.ID, "New", 1, nil)
	cs.Create(ctx, b.family.ID, "Other family", 1, nil)
	backdate(t, db, "chores", old.ID, "2024-01-01 00:00:00")
	backdate(t, db, "chores", recent.ID, "2024-06-01 00:00:00")

	list, err := cs.List(ctx, a.family.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != recent.ID {
		t.Errorf("first = %s, want newest %s", list[0].Title, recent.Title)
	}

	if got, _ := cs.Get(ctx, b.family.ID, old.ID); got != nil {
		t.Error("chore visible from another family")
	}
}
