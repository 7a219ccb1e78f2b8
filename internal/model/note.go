package model

import "time"

type Note struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	AuthorID  *string   `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const DefaultNoteColor = "yellow"
