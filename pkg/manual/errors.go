package manual

import (
	"errors"
	"net/http"

	"intranet-portal/pkg/validation"
)

var (
	ErrForbidden = errors.New("manual: forbidden")
	ErrNotFound  = errors.New("manual: not found")
	ErrInvalidID = errors.New("manual: invalid id")

	// ErrAlreadyExists is returned by the store when an article already has
	// an attachment with the same file name.
	ErrAlreadyExists = errors.New("manual: attachment already exists")

	ErrFileTooLarge    = errors.New("manual: file too large")
	ErrUnsupportedType = errors.New("manual: unsupported file type")
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
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
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
		return "Not found."
	case errors.Is(err, ErrInvalidID):
		return "Invalid id."
	case errors.Is(err, ErrAlreadyExists):
		return "An attachment with this name already exists."
	case errors.Is(err, ErrFileTooLarge):
		return "The file is too large."
	case errors.Is(err, ErrUnsupportedType):
		return "This file type is not allowed."
	}
	if _, ok := validation.Fields(err); ok {
		return "Validation failed."
	}
	return "The manual is unavailable right now. Please try again."
}
