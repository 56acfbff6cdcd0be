package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intranet-portal/pkg/poll"
)

// PollStore implements poll.Store.
type PollStore struct {
	db *sql.DB
}

// NewPollStore creates a poll store on db.
func NewPollStore(db *sql.DB) *PollStore {
	return &PollStore{db: db}
}

// Create inserts a poll and its options in one transaction.
func (s *PollStore) Create(ctx context.Context, question string, options []string, createdBy int64) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO polls (question, created_by) VALUES ($1, $2) RETURNING id`,
		question, createdBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert poll: %w", err)
	}
	for i, label := range options {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO poll_options (poll_id, label, position) VALUES ($1, $2, $3)`,
			id, label, i); err != nil {
			return 0, fmt.Errorf("insert poll option: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// FindAll returns every poll with vote counts, newest first.
func (s *PollStore) FindAll(ctx context.Context) ([]poll.Poll, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, created_by, closed, created_at FROM polls ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer rows.Close()

	polls := []poll.Poll{}
	index := make(map[int64]int)
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		index[p.ID] = len(polls)
		polls = append(polls, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	options, err := s.options(ctx, 0)
	if err != nil {
		return nil, err
	}
	for pollID, opts := range options {
		if i, ok := index[pollID]; ok {
			polls[i].Options = opts
		}
	}
	return polls, nil
}

// FindByID returns a poll with vote counts or poll.ErrNotFound.
func (s *PollStore) FindByID(ctx context.Context, id int64) (*poll.Poll, error) {
	p, err := scanPoll(s.db.QueryRowContext(ctx,
		`SELECT id, question, created_by, closed, created_at FROM polls WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, poll.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query poll: %w", err)
	}

	options, err := s.options(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Options = options[id]
	return p, nil
}

// options loads options with counts for one poll, or all polls when
// pollID is 0.
func (s *PollStore) options(ctx context.Context, pollID int64) (map[int64][]poll.Option, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.poll_id, o.id, o.label, COUNT(v.user_id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE $1 = 0 OR o.poll_id = $1
		GROUP BY o.poll_id, o.id, o.label, o.position
		ORDER BY o.poll_id, o.position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query poll options: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]poll.Option)
	for rows.Next() {
		var (
			owner int64
			o     poll.Option
		)
		if err := rows.Scan(&owner, &o.ID, &o.Label, &o.Votes); err != nil {
			return nil, fmt.Errorf("scan poll option: %w", err)
		}
		out[owner] = append(out[owner], o)
	}
	return out, rows.Err()
}

// Vote records a vote. The (poll_id, user_id) primary key enforces one vote
// per member; a second vote comes back as poll.ErrAlreadyVoted.
func (s *PollStore) Vote(ctx context.Context, pollID, optionID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_votes (poll_id, user_id, option_id) VALUES ($1, $2, $3)`,
		pollID, userID, optionID)
	if isUniqueViolation(err, "poll_votes_pkey") {
		return poll.ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// VoteOf returns the option userID chose on pollID.
func (s *PollStore) VoteOf(ctx context.Context, pollID, userID int64) (int64, bool, error) {
	var optionID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT option_id FROM poll_votes WHERE poll_id = $1 AND user_id = $2`,
		pollID, userID).Scan(&optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query vote: %w", err)
	}
	return optionID, true, nil
}

// Close marks a poll closed.
func (s *PollStore) Close(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET closed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("close poll: %w", err)
	}
	return expectRow(res, poll.ErrNotFound)
}

func scanPoll(row scanner) (*poll.Poll, error) {
	var (
		p         poll.Poll
		createdBy sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Question, &createdBy, &p.Closed, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedBy = int64Ptr(createdBy)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
