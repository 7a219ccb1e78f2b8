package auth

import (
	"context"

	"github.com/dukerupert/famhub/internal/model"
)

type contextKey struct{}

// AuthContext is the identity attached to an authenticated request.
type AuthContext struct {
	ProfileID string
	FamilyID  string
	Role      model.Role
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.FamilyID
}

func ProfileID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.ProfileID
}

// IsParent reports the role carried by the token. Ledger operations re-check
// the role against the stored profile.
func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent
}
