package chore

import (
	"testing"

	"github.com/dukerupert/famhub/internal/model"
)

func strPtr(s string) *string { return &s }

func TestCompleteUnassignedClaims(t *testing.T) {
	c := model.Chore{ID: "c1", Title: "Dishes", Points: 10}

	got := Resolve(c, "kid-1")
	if !got.Completed {
		t.Error("expected completed")
	}
	if got.AssignedTo == nil || *got.AssignedTo != "kid-1" {
		t.Errorf("assigned_to = %v, want kid-1", got.AssignedTo)
	}
	if !got.Claimed {
		t.Error("expected claimed")
	}
}

func TestCompleteAssignedKeepsAssignee(t *testing.T) {
	c := model.Chore{ID: "c1", AssignedTo: strPtr("kid-2")}

	got := Resolve(c, "kid-1")
	if got.AssignedTo == nil || *got.AssignedTo != "kid-2" {
		t.Errorf("assigned_to = %v, want kid-2", got.AssignedTo)
	}
	if got.Claimed {
		t.Error("should not claim an assigned chore")
	}
}

func TestUncompleteNeverUnclaims(t *testing.T) {
	c := model.Chore{ID: "c1"}

	done := Apply(c, "kid-1")
	undone := Apply(done, "kid-2")
	if undone.IsCompleted {
		t.Error("expected incomplete after second toggle")
	}
	if undone.AssignedTo == nil || *undone.AssignedTo != "kid-1" {
		t.Errorf("assigned_to = %v, want kid-1 kept", undone.AssignedTo)
	}
	if undone.AwardedTo != nil {
		t.Errorf("awarded_to = %v, want nil after undo", *undone.AwardedTo)
	}

	redone := Apply(undone, "kid-2")
	if redone.AwardedTo == nil || *redone.AwardedTo != "kid-1" {
		t.Errorf("re-completion should credit original claimant, got %v", redone.AwardedTo)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	c := model.Chore{ID: "c1"}
	_ = Apply(c, "kid-1")
	if c.IsCompleted || c.AssignedTo != nil {
		t.Errorf("input mutated: %+v", c)
	}
}
