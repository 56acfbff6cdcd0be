package poll

import (
	"errors"
	"net/http"

	"intranet-portal/pkg/validation"
)

var (
	ErrForbidden = errors.New("poll: forbidden")
	ErrNotFound  = errors.New("poll: not found")
	ErrInvalidID = errors.New("poll: invalid id")
	ErrClosed    = errors.New("poll: closed")

	// ErrAlreadyVoted is returned by the store when the user already voted
	// on the poll.
	ErrAlreadyVoted = errors.New("poll: already voted")
)

// StatusCode maps a service error onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, ErrClosed), errors.Is(err, ErrAlreadyVoted):
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
	case errors.Is(err, ErrForbidden):
		return "Forbidden."
	case errors.Is(err, ErrNotFound):
		return "Poll not found."
	case errors.Is(err, ErrInvalidID):
		return "Invalid poll id."
	case errors.Is(err, ErrClosed):
		return "This poll is closed."
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted in this poll."
	}
	if _, ok := validation.Fields(err); ok {
		return "Validation failed."
	}
	return "Polls are unavailable right now. Please try again."
}
