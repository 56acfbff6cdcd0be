package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/validation"

	"go.uber.org/zap"
)

// Session is the result of a successful login.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Identity  identity.Identity `json:"identity"`
}

// Service implements registration, approval and login.
type Service struct {
	store  Store
	hasher Hasher
	tokens *Tokens
	audit  audit.Logger
	logger *logging.Logger

	// digest verified against when the email is unknown, so both failure
	// paths cost one bcrypt comparison
	decoy string
}

// Dependencies wires a Service. Store and Tokens are required.
type Dependencies struct {
	Store  Store
	Hasher Hasher
	Tokens *Tokens
	Audit  audit.Logger
	Logger *logging.Logger
}

// NewService creates an auth service.
func NewService(deps Dependencies) (*Service, error) {
	s := &Service{
		store:  deps.Store,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		audit:  deps.Audit,
		logger: deps.Logger,
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(0)
	}
	if s.audit == nil {
		s.audit = audit.NoOp{}
	}
	if s.logger == nil {
		s.logger = logging.NewNoOpLogger()
	}
	s.logger = s.logger.Named("auth")

	decoy, err := s.hasher.Hash("decoy-password")
	if err != nil {
		return nil, err
	}
	s.decoy = decoy
	return s, nil
}

// Register creates a pending member account.
func (s *Service) Register(ctx context.Context, in Registration) (*User, error) {
	in = in.normalized()
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	return s.create(ctx, in, identity.RoleMember, StatusPending)
}

// CreateAdmin creates an approved admin account. It backs the bootstrap
// command and is not reachable over HTTP.
func (s *Service) CreateAdmin(ctx context.Context, in Registration) (*User, error) {
	in = in.normalized()
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	return s.create(ctx, in, identity.RoleAdmin, StatusApproved)
}

func (s *Service) create(ctx context.Context, in Registration, role identity.Role, status Status) (*User, error) {
	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: digest,
		Role:         role,
		Status:       status,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			errs := validation.FieldErrors{}
			errs.Add("email", MsgEmailTaken)
			return nil, fmt.Errorf("%w: %w", ErrAlreadyExists, errs.Err())
		}
		return nil, s.storeError("create user", err)
	}

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("reload user", err)
	}
	s.emit(ctx, identity.Anonymous, "auth.register", fmt.Sprintf("Account #%d registered", id), id)
	return u, nil
}

// Login checks credentials and issues a session token. Only approved
// accounts may sign in.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(password, s.decoy)
			return nil, ErrInvalidCredentials
		}
		return nil, s.storeError("find user", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if u.Status != StatusApproved {
		return nil, ErrNotApproved
	}

	id := u.Identity()
	token, expires, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed in", zap.Int64("user_id", u.ID))
	return &Session{Token: token, ExpiresAt: expires, Identity: id}, nil
}

// Pending lists accounts waiting for approval. Admin only.
func (s *Service) Pending(ctx context.Context, actor identity.Identity) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	users, err := s.store.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, s.storeError("list pending users", err)
	}
	return users, nil
}

// Approve activates a pending account with role. An empty role means member.
func (s *Service) Approve(ctx context.Context, actor identity.Identity, id int64, role string) (*User, error) {
	r := identity.RoleMember
	if role != "" {
		r = identity.Role(role)
		if !r.Valid() {
			errs := validation.FieldErrors{}
			errs.Add("role", MsgRoleInvalid)
			return nil, errs.Err()
		}
	}
	return s.decide(ctx, actor, id, StatusApproved, r)
}

// Reject refuses a pending account.
func (s *Service) Reject(ctx context.Context, actor identity.Identity, id int64) (*User, error) {
	return s.decide(ctx, actor, id, StatusRejected, identity.RoleMember)
}

func (s *Service) decide(ctx context.Context, actor identity.Identity, id int64, status Status, role identity.Role) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if id <= 0 {
		return nil, ErrInvalidID
	}

	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("load user", err)
	}
	if u.Status != StatusPending {
		return nil, ErrNotPending
	}

	if err := s.store.SetStatus(ctx, id, status, role); err != nil {
		return nil, s.storeError("set user status", err)
	}
	u.Status = status
	u.Role = role

	event := "auth.approve"
	if status == StatusRejected {
		event = "auth.reject"
	}
	s.emit(ctx, actor, event, fmt.Sprintf("Account #%d %s", id, status), id)
	return u, nil
}

func (s *Service) storeError(op string, err error) error {
	s.logger.Error("auth store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("auth: %s: %w", op, err)
}

func (s *Service) emit(ctx context.Context, actor identity.Identity, eventType, message string, userID int64) {
	event := audit.Event{
		Type:     eventType,
		Message:  message,
		ActorID:  actor.UserID,
		Metadata: map[string]interface{}{"user_id": userID},
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", zap.String("event", eventType), zap.Error(err))
	}
}
