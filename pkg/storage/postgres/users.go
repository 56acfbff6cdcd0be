package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/identity"
)

const userColumns = `id, name, email, password_hash, role, status, created_at`

// UserStore implements auth.Store.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store on db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. A taken email comes back as auth.ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, u auth.User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status),
	).Scan(&id)
	if isUniqueViolation(err, "users_email_key") {
		return 0, auth.ErrAlreadyExists
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// FindByID returns a user or auth.ErrNotFound.
func (s *UserStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail returns a user or auth.ErrNotFound.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg interface{}) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// ListByStatus returns users with status, oldest first.
func (s *UserStore) ListByStatus(ctx context.Context, status auth.Status) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out := []auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetStatus updates status and role.
func (s *UserStore) SetStatus(ctx context.Context, id int64, status auth.Status, role identity.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = $2, role = $3 WHERE id = $1`, id, string(status), string(role))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectRow(res, auth.ErrNotFound)
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		u            auth.User
		role, status string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = identity.ParseRole(role)
	u.Status = auth.Status(status)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
