// Package identity holds the caller identity consumed by the marketplace.
// Authentication happens elsewhere; this package only models the result.
package identity

import "context"

// Role of an authenticated user
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole converts a claim value into a Role
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleBuyer, RoleSeller:
		return Role(s), true
	}
	return "", false
}

// Identity is the explicit actor passed into every marketplace operation.
type Identity struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}

// Valid reports whether the identity carries a user and a known role
func (i Identity) Valid() bool {
	if i.UserID == "" {
		return false
	}
	_, ok := ParseRole(string(i.Role))
	return ok
}

func (i Identity) IsBuyer() bool  { return i.Role == RoleBuyer }
func (i Identity) IsSeller() bool { return i.Role == RoleSeller }

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the identity stored by WithIdentity
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
