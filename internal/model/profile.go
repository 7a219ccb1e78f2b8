package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type Profile struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Balance     int       `json:"balance"`
	AvatarURL   string    `json:"avatar_url"`
	HasPIN      bool      `json:"has_pin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Profile) IsParent() bool { return p.Role == RoleParent }
func (p *Profile) IsChild() bool  { return p.Role == RoleChild }
