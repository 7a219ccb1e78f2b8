package model

import "time"

type Chore struct {
	ID          string  `json:"id"`
	FamilyID    string  `json:"family_id"`
	Title       string  `json:"title"`
	Points      int     `json:"points"`
	IsCompleted bool    `json:"is_completed"`
	AssignedTo  *string `json:"assigned_to"`
	AwardedTo   *string `json:"awarded_to"`
	// AwardedPoints is what AwardedTo was credited, revoked exactly on undo.
	AwardedPoints int       `json:"awarded_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
