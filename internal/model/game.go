package model

import "time"

type GameScore struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	ProfileID string    `json:"profile_id"`
	GameID    string    `json:"game_id"`
	Level     int       `json:"level"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// GameProgress is what a game needs to resume: the best level reached and the
// level to start at next.
type GameProgress struct {
	GameID       string `json:"game_id"`
	HighestLevel int    `json:"highest_level"`
	NextLevel    int    `json:"next_level"`
}
