package model

import "time"

type Grocery struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	ItemName    string    `json:"item_name"`
	Quantity    string    `json:"quantity"`
	Category    string    `json:"category"`
	IsPurchased bool      `json:"is_purchased"`
	AddedBy     *string   `json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
