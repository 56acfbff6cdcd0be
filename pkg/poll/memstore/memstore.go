// Package memstore is an in-memory poll.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"intranet-portal/pkg/poll"
)

type voteKey struct {
	pollID, userID int64
}

// Store keeps polls and votes in maps guarded by a mutex.
type Store struct {
	mu         sync.RWMutex
	polls      map[int64]poll.Poll
	votes      map[voteKey]int64
	nextPoll   int64
	nextOption int64
	now        func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		polls:      make(map[int64]poll.Poll),
		votes:      make(map[voteKey]int64),
		nextPoll:   1,
		nextOption: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a poll with its options.
func (s *Store) Create(ctx context.Context, question string, options []string, createdBy int64) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	creator := createdBy
	p := poll.Poll{
		ID:        s.nextPoll,
		Question:  question,
		CreatedBy: &creator,
		CreatedAt: s.now(),
	}
	s.nextPoll++
	for _, label := range options {
		p.Options = append(p.Options, poll.Option{ID: s.nextOption, Label: label})
		s.nextOption++
	}
	s.polls[p.ID] = p
	return p.ID, nil
}

// FindAll returns every poll, newest first.
func (s *Store) FindAll(ctx context.Context) ([]poll.Poll, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]poll.Poll, 0, len(s.polls))
	for id := range s.polls {
		out = append(out, s.withCounts(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// FindByID returns a poll with current counts.
func (s *Store) FindByID(ctx context.Context, id int64) (*poll.Poll, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.polls[id]; !ok {
		return nil, poll.ErrNotFound
	}
	p := s.withCounts(id)
	return &p, nil
}

// withCounts copies a poll and fills in vote counts. Callers hold s.mu.
func (s *Store) withCounts(id int64) poll.Poll {
	p := s.polls[id]
	options := make([]poll.Option, len(p.Options))
	copy(options, p.Options)
	for key, optionID := range s.votes {
		if key.pollID != id {
			continue
		}
		for i := range options {
			if options[i].ID == optionID {
				options[i].Votes++
			}
		}
	}
	p.Options = options
	return p
}

// Vote records one vote per (poll, user).
func (s *Store) Vote(ctx context.Context, pollID, optionID, userID int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{pollID: pollID, userID: userID}
	if _, ok := s.votes[key]; ok {
		return poll.ErrAlreadyVoted
	}
	s.votes[key] = optionID
	return nil
}

// VoteOf returns the option userID chose on pollID.
func (s *Store) VoteOf(ctx context.Context, pollID, userID int64) (int64, bool, error) {
	if s.Err != nil {
		return 0, false, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	optionID, ok := s.votes[voteKey{pollID: pollID, userID: userID}]
	return optionID, ok, nil
}

// Close marks a poll closed.
func (s *Store) Close(ctx context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[id]
	if !ok {
		return poll.ErrNotFound
	}
	p.Closed = true
	s.polls[id] = p
	return nil
}
