package store

import (
	"context"
	"testing"
)

func TestPushSubscribeUpsertsByEndpoint(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ps := NewPushStore(db)
	ctx := context.Background()

	sub, err := ps.Subscribe(ctx, f.family.ID, f.parent.ID, "https://push.example/1", "p1", "a1", "Kitchen tablet")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ProfileID != f.parent.ID || sub.DeviceName != "Kitchen tablet" {
		t.Errorf("sub = %+v", sub)
	}

	again, err := ps.Subscribe(ctx, f.family.ID, f.kid.ID, "https://push.example/1", "p2", "a2", "Kitchen tablet")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("resubscribe created a new row")
	}
	if again.ProfileID != f.kid.ID || again.P256dhKey != "p2" {
		t.Errorf("resubscribe did not refresh: %+v", again)
	}
}

func TestPushListByProfilesAndUnsubscribe(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "A")
	ps := NewPushStore(db)
	ctx := context.Background()

	ps.Subscribe(ctx, f.family.ID, f.parent.ID, "https://push.example/p", "p", "a", "")
	ps.Subscribe(ctx, f.family.ID, f.kid.ID, "https://push.example/k", "p", "a", "")

	subs, err := ps.ListByProfiles(ctx, f.family.ID, []string{f.parent.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/p" {
		t.Fatalf("subs = %+v", subs)
	}

	empty, err := ps.ListByProfiles(ctx, f.family.ID, nil)
	if err != nil || empty != nil {
		t.Errorf("empty profile list = %v, %v", empty, err)
	}

	if err := ps.Unsubscribe(ctx, f.kid.ID, "https://push.example/p"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if got, _ := ps.GetByEndpoint(ctx, "https://push.example/p"); got == nil {
		t.Error("unsubscribe by another profile should not remove the endpoint")
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.example/p"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	if got, _ := ps.GetByEndpoint(ctx, "https://push.example/p"); got != nil {
		t.Error("expected endpoint removed")
	}
}
