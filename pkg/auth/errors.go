package auth

import (
	"errors"
	"net/http"

	"intranet-portal/pkg/validation"
)

var (
	ErrForbidden = errors.New("auth: forbidden")
	ErrNotFound  = errors.New("auth: user not found")
	ErrInvalidID = errors.New("auth: invalid user id")

	// ErrAlreadyExists is returned by the store for a duplicate email.
	ErrAlreadyExists = errors.New("auth: user already exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrNotApproved  = errors.New("auth: account not approved")
	ErrNotPending   = errors.New("auth: account is not pending")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// StatusCode maps a service error onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrNotPending):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	}
	if _, ok := validation.Fields(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Message returns a user-safe message for err.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrInvalidToken):
		return "Please sign in again."
	case errors.Is(err, ErrNotApproved):
		return "Your account has not been approved yet."
	case errors.Is(err, ErrForbidden):
		return "Forbidden."
	case errors.Is(err, ErrNotFound):
		return "User not found."
	case errors.Is(err, ErrInvalidID):
		return "Invalid user id."
	case errors.Is(err, ErrNotPending):
		return "Only pending accounts can be approved or rejected."
	case errors.Is(err, ErrAlreadyExists):
		return MsgEmailTaken
	}
	if _, ok := validation.Fields(err); ok {
		return "Validation failed."
	}
	return "Accounts are unavailable right now. Please try again."
}
