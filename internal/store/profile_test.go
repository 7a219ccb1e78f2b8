package store

import (
	"context"
	"testing"

	"github.com/dukerupert/famhub/internal/model"
)

func TestProfileListAndFamilyScope(t *testing.T) {
	db := setupTestDB(t)
	a := seedFamily(t, db, "A")
	b := seedFamily(t, db, "B")
	ps := NewProfileStore(db)
	ctx := context.Background()

	list, err := ps.List(ctx, a.family.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Role != model.RoleParent {
		t.Errorf("parents should sort first, got %s", list[0].Role)
	}

	other, err := ps.Get(ctx, a.family.ID, b.kid.ID)
	if err != nil {
		t.Fatalf("get cross family: %v", err)
	}
	if other != nil {
		t.Error("profile from another family should not be visible")
	}

	parents, err := ps.ListParents(ctx, a.family.ID)
	if err != nil {
		t.Fatalf("list parents: %v", err)
	}
	if len(parents) != 1 || parents[0].ID != a.parent.ID {
		t.Errorf("parents = %+v", parents)
	}
}

func TestProfileBalanceGuards(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ps := NewProfileStore(db)
	ctx := context.Background()

	if err := ps.Credit(ctx, f.kid.ID, 50); err != nil {
		t.Fatalf("credit: %v", err)
	}

	ok, err := ps.Debit(ctx, f.kid.ID, 60)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("debit beyond balance should not apply")
	}

	ok, err = ps.Debit(ctx, f.kid.ID, 50)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !ok {
		t.Fatal("debit of full balance should apply")
	}

	if err := ps.Credit(ctx, f.kid.ID, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}
	taken, err := ps.Revoke(ctx, f.kid.ID, 25)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if taken != 10 {
		t.Errorf("revoked = %d, want 10", taken)
	}

	got, _ := ps.GetByID(ctx, f.kid.ID)
	if got.Balance != 0 {
		t.Errorf("balance = %d, want 0", got.Balance)
	}
}

func TestProfilePIN(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ps := NewProfileStore(db)
	ctx := context.Background()

	hash, err := ps.GetPINHash(ctx, f.family.ID, f.parent.ID)
	if err != nil {
		t.Fatalf("get pin: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := ps.SetPIN(ctx, f.family.ID, f.parent.ID, "$2a$hash"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	p, _ := ps.Get(ctx, f.family.ID, f.parent.ID)
	if !p.HasPIN {
		t.Error("expected HasPIN after SetPIN")
	}

	if err := ps.ClearPIN(ctx, f.family.ID, f.parent.ID); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	p, _ = ps.Get(ctx, f.family.ID, f.parent.ID)
	if p.HasPIN {
		t.Error("expected no PIN after ClearPIN")
	}
}
