// Package auth manages member accounts: registration, approval by an admin,
// password login and the session tokens that carry an identity.Identity.
package auth

import (
	"net/mail"
	"strings"
	"time"

	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/validation"
)

// Status is the approval state of an account.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// User is a portal account. PasswordHash never leaves the package boundary
// in JSON.
type User struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Role         identity.Role `json:"role"`
	Status       Status        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Identity returns the acting identity of u.
func (u User) Identity() identity.Identity {
	return identity.Identity{UserID: u.ID, Name: u.Name, Role: identity.ParseRole(string(u.Role))}
}

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

const (
	MsgNameRequired     = "Name is required."
	MsgNameTooLong      = "Name may not exceed 100 characters."
	MsgEmailInvalid     = "Email must be a valid address."
	MsgEmailTaken       = "An account with this email already exists."
	MsgPasswordTooShort = "Password must be at least 8 characters."
	MsgPasswordTooLong  = "Password may not exceed 72 bytes."
	MsgRoleInvalid      = "Role must be member, treasurer or admin."
)

const (
	maxNameLength     = 100
	minPasswordLength = 8

	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

func (r Registration) normalized() Registration {
	return Registration{
		Name:     strings.TrimSpace(r.Name),
		Email:    normalizeEmail(r.Email),
		Password: r.Password,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks a normalized registration.
func (r Registration) Validate() validation.FieldErrors {
	errs := validation.FieldErrors{}

	switch n := validation.Length(r.Name); {
	case n == 0:
		errs.Add("name", MsgNameRequired)
	case n > maxNameLength:
		errs.Add("name", MsgNameTooLong)
	}

	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		errs.Add("email", MsgEmailInvalid)
	}

	switch {
	case validation.Length(r.Password) < minPasswordLength:
		errs.Add("password", MsgPasswordTooShort)
	case len(r.Password) > maxPasswordBytes:
		errs.Add("password", MsgPasswordTooLong)
	}
	return errs
}
