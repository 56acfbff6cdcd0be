package identity

import "context"

// Role is the portal role of a user account.
type Role string

const (
	RoleMember    Role = "member"
	RoleTreasurer Role = "treasurer"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored role name onto a known Role.
// Unknown or empty names fall back to RoleMember.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleTreasurer, RoleAdmin:
		return Role(s)
	default:
		return RoleMember
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleTreasurer, RoleAdmin:
		return true
	}
	return false
}

// IsModerator reports whether the role carries elevated treasury rights.
func (r Role) IsModerator() bool {
	return r == RoleTreasurer || r == RoleAdmin
}

// Identity is the acting user of a request.
// The zero value is the anonymous actor.
type Identity struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// Anonymous is the identity used when no session is present.
var Anonymous = Identity{}

// Authenticated reports whether the identity belongs to a signed-in user.
func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

// IsModerator reports whether the identity is a signed-in moderator.
func (i Identity) IsModerator() bool {
	return i.Authenticated() && i.Role.IsModerator()
}

// IsAdmin reports whether the identity is a signed-in admin.
func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == RoleAdmin
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
