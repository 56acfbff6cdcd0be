package poll

import (
	"context"
	"errors"
	"fmt"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/validation"

	"go.uber.org/zap"
)

// Service implements the poll use cases.
type Service struct {
	store  Store
	audit  audit.Logger
	logger *logging.Logger
}

// NewService creates a poll service. auditLogger and logger may be nil.
func NewService(store Store, auditLogger audit.Logger, logger *logging.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NoOp{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Service{store: store, audit: auditLogger, logger: logger.Named("poll")}
}

// List returns all polls, newest first.
func (s *Service) List(ctx context.Context, actor identity.Identity) ([]Poll, error) {
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	polls, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storeError("list polls", err)
	}
	return polls, nil
}

// Get returns a poll with totals and the actor's own vote.
func (s *Service) Get(ctx context.Context, actor identity.Identity, id int64) (*Results, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	res := &Results{Poll: *p, Total: p.TotalVotes()}

	optionID, found, err := s.store.VoteOf(ctx, id, actor.UserID)
	if err != nil {
		return nil, s.storeError("load vote", err)
	}
	if found {
		res.MyVote = &optionID
	}
	return res, nil
}

// Create opens a new poll. Only moderators create polls.
func (s *Service) Create(ctx context.Context, actor identity.Identity, in Input) (*Results, error) {
	if !actor.IsModerator() {
		return nil, ErrForbidden
	}
	in = in.normalized()
	if err := Validate(in).Err(); err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, in.Question, in.Options, actor.UserID)
	if err != nil {
		return nil, s.storeError("create poll", err)
	}
	s.emit(ctx, actor, "poll.create", fmt.Sprintf("Poll #%d created", id), id)
	return s.Get(ctx, actor, id)
}

// Vote records the actor's choice. A second vote by the same member fails
// with ErrAlreadyVoted.
func (s *Service) Vote(ctx context.Context, actor identity.Identity, pollID, optionID int64) (*Results, error) {
	p, err := s.load(ctx, actor, pollID)
	if err != nil {
		return nil, err
	}
	if p.Closed {
		return nil, ErrClosed
	}
	if !p.HasOption(optionID) {
		errs := validation.FieldErrors{}
		errs.Add("option", MsgOptionInvalid)
		return nil, errs.Err()
	}

	if err := s.store.Vote(ctx, pollID, optionID, actor.UserID); err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return nil, ErrAlreadyVoted
		}
		return nil, s.storeError("record vote", err)
	}
	return s.Get(ctx, actor, pollID)
}

// Close stops a poll from accepting votes.
func (s *Service) Close(ctx context.Context, actor identity.Identity, id int64) (*Results, error) {
	if !actor.IsModerator() {
		return nil, ErrForbidden
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.store.Close(ctx, id); err != nil {
		return nil, s.storeError("close poll", err)
	}
	s.emit(ctx, actor, "poll.close", fmt.Sprintf("Poll #%d closed", id), id)
	return s.Get(ctx, actor, id)
}

func (s *Service) load(ctx context.Context, actor identity.Identity, id int64) (*Poll, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("load poll", err)
	}
	return p, nil
}

func (s *Service) storeError(op string, err error) error {
	s.logger.Error("poll store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("poll: %s: %w", op, err)
}

func (s *Service) emit(ctx context.Context, actor identity.Identity, eventType, message string, pollID int64) {
	event := audit.Event{
		Type:     eventType,
		Message:  message,
		ActorID:  actor.UserID,
		Metadata: map[string]interface{}{"poll_id": pollID},
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", zap.String("event", eventType), zap.Error(err))
	}
}
