// Package memstore is an in-memory treasury.Store. It backs tests and the
// "memory" storage mode of the serve command.
package memstore

import (
	"context"
	"sync"
	"time"

	"intranet-portal/pkg/treasury"
)

// Store keeps transactions in a map guarded by a mutex.
type Store struct {
	mu        sync.RWMutex
	rows      map[int64]treasury.Transaction
	nextID    int64
	cashboxID int64
	now       func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		rows:   make(map[int64]treasury.Transaction),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Seed inserts rows verbatim, assigning ids to rows without one.
func (s *Store) Seed(txs ...treasury.Transaction) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		if tx.ID == 0 {
			tx.ID = s.nextID
		}
		if tx.ID >= s.nextID {
			s.nextID = tx.ID + 1
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = s.now()
		}
		s.rows[tx.ID] = tx
		ids = append(ids, tx.ID)
	}
	return ids
}

// EnsureDefaultCashboxID returns the single cashbox id, creating it once.
func (s *Store) EnsureDefaultCashboxID(ctx context.Context) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cashboxID == 0 {
		s.cashboxID = 1
	}
	return s.cashboxID, nil
}

// Insert stores a new row and returns its id.
func (s *Store) Insert(ctx context.Context, in treasury.NewTransaction) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	tx := treasury.Transaction{
		ID:          id,
		CashboxID:   in.CashboxID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      in.Status,
		CreatedBy:   in.CreatedBy,
		ApprovedBy:  in.ApprovedBy,
		CreatedAt:   s.now(),
	}
	if in.ApprovedBy != nil {
		at := s.now()
		tx.ApprovedAt = &at
	}
	s.rows[id] = tx
	return id, nil
}

// Update overwrites the mutable fields of a row.
func (s *Store) Update(ctx context.Context, id int64, changes treasury.Changes) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.rows[id]
	if !ok {
		return treasury.ErrNotFound
	}
	tx.Type = changes.Type
	tx.Amount = changes.Amount
	tx.Description = changes.Description
	tx.Status = changes.Status
	if changes.ApprovedBy != nil {
		approver := *changes.ApprovedBy
		at := s.now()
		tx.ApprovedBy = &approver
		tx.ApprovedAt = &at
	}
	s.rows[id] = tx
	return nil
}

// SetStatus changes the status and records the approver.
func (s *Store) SetStatus(ctx context.Context, id int64, status treasury.Status, approvedBy *int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.rows[id]
	if !ok {
		return treasury.ErrNotFound
	}
	tx.Status = status
	if approvedBy != nil {
		approver := *approvedBy
		at := s.now()
		tx.ApprovedBy = &approver
		tx.ApprovedAt = &at
	}
	s.rows[id] = tx
	return nil
}

// Delete removes a row; deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// FindByID returns a copy of the row.
func (s *Store) FindByID(ctx context.Context, id int64) (*treasury.Transaction, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.rows[id]
	if !ok {
		return nil, treasury.ErrNotFound
	}
	return &tx, nil
}

// FindAll returns every row in id order.
func (s *Store) FindAll(ctx context.Context) ([]treasury.Transaction, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]treasury.Transaction, 0, len(s.rows))
	for id := int64(1); id < s.nextID; id++ {
		if tx, ok := s.rows[id]; ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Totals derives the balances from the stored rows.
func (s *Store) Totals(ctx context.Context) (treasury.Totals, error) {
	txs, err := s.FindAll(ctx)
	if err != nil {
		return treasury.Totals{}, err
	}
	return treasury.ComputeTotals(txs), nil
}
