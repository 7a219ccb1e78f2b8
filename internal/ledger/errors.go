package ledger

import "errors"

var (
	// ErrInsufficientBalance means the child cannot cover the reward cost at
	// transaction time.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidState means the redemption has already been decided.
	ErrInvalidState = errors.New("redemption is not pending")
	// ErrForbidden means the caller's role or family does not allow the
	// operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the referenced row does not exist in the caller's
	// family.
	ErrNotFound = errors.New("not found")
)

// Code returns the stable machine-readable code for a ledger error, or
// "internal" for anything else. A nil error yields "ok".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
