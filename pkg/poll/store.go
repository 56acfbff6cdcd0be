package poll

import "context"

// Store is the persistence boundary of polls. FindByID returns ErrNotFound
// for a missing poll; Vote returns ErrAlreadyVoted when (poll, user) is
// already recorded.
type Store interface {
	Create(ctx context.Context, question string, options []string, createdBy int64) (int64, error)
	FindAll(ctx context.Context) ([]Poll, error)
	FindByID(ctx context.Context, id int64) (*Poll, error)
	Vote(ctx context.Context, pollID, optionID, userID int64) error
	VoteOf(ctx context.Context, pollID, userID int64) (optionID int64, found bool, err error)
	Close(ctx context.Context, id int64) error
}
