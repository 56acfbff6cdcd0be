package treasury

import "context"

// Store is the persistence boundary of the ledger.
// FindByID returns ErrNotFound when the row does not exist.
type Store interface {
	EnsureDefaultCashboxID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, tx NewTransaction) (int64, error)
	Update(ctx context.Context, id int64, changes Changes) error
	SetStatus(ctx context.Context, id int64, status Status, approvedBy *int64) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Transaction, error)
	FindAll(ctx context.Context) ([]Transaction, error)
	Totals(ctx context.Context) (Totals, error)
}

// Locker serializes balance-affecting mutations.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LedgerLockKey is the lock taken around read-balance, validate, write.
const LedgerLockKey = "treasury:ledger"
