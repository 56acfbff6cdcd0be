// Package memstore is an in-memory auth.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/identity"
)

// Store keeps users in a map guarded by a mutex.
type Store struct {
	mu     sync.RWMutex
	users  map[int64]auth.User
	emails map[string]int64
	nextID int64
	now    func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:  make(map[int64]auth.User),
		emails: make(map[string]int64),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a user. Emails are unique.
func (s *Store) Create(ctx context.Context, u auth.User) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[u.Email]; taken {
		return 0, auth.ErrAlreadyExists
	}
	u.ID = s.nextID
	s.nextID++
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return u.ID, nil
}

// FindByID returns a copy of the user.
func (s *Store) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// FindByEmail returns a copy of the user with email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// ListByStatus returns users with status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status auth.Status) ([]auth.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []auth.User{}
	for _, u := range s.users {
		if u.Status == status {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetStatus updates status and role.
func (s *Store) SetStatus(ctx context.Context, id int64, status auth.Status, role identity.Role) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	u.Role = role
	s.users[id] = u
	return nil
}
