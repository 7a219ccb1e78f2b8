// Package chore resolves what happens to a chore's ownership when its
// completion is toggled. The same rules run on the client for the optimistic
// update and on the server for the authoritative write.
package chore

import "github.com/dukerupert/famhub/internal/model"

// Toggle is the result of flipping a chore's completion flag.
type Toggle struct {
	Completed  bool
	AssignedTo *string
	// Claimed is true when this toggle assigned a previously unowned chore.
	Claimed bool
}

// Resolve flips c's completion on behalf of actorID. Completing an unassigned
// chore claims it for the actor. Un-completing never clears the assignee.
func Resolve(c model.Chore, actorID string) Toggle {
	t := Toggle{Completed: !c.IsCompleted, AssignedTo: c.AssignedTo}
	if t.Completed && c.AssignedTo == nil && actorID != "" {
		id := actorID
		t.AssignedTo = &id
		t.Claimed = true
	}
	return t
}

// Apply returns a copy of c with the toggle for actorID applied. AwardedTo
// and AwardedPoints follow the ledger: set on completion, cleared on undo.
func Apply(c model.Chore, actorID string) model.Chore {
	t := Resolve(c, actorID)
	c.IsCompleted = t.Completed
	c.AssignedTo = t.AssignedTo
	if t.Completed {
		c.AwardedTo, c.AwardedPoints = t.AssignedTo, c.Points
	} else {
		c.AwardedTo, c.AwardedPoints = nil, 0
	}
	return c
}
