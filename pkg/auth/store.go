package auth

import (
	"context"

	"intranet-portal/pkg/identity"
)

// Store is the persistence boundary of accounts. Lookups return ErrNotFound
// for missing users; Create returns ErrAlreadyExists for a taken email.
type Store interface {
	Create(ctx context.Context, u User) (int64, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByStatus(ctx context.Context, status Status) ([]User, error)
	SetStatus(ctx context.Context, id int64, status Status, role identity.Role) error
}
