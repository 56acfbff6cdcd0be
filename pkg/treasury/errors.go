package treasury

import (
	"errors"
	"net/http"

	"intranet-portal/pkg/validation"
)

var (
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("treasury: forbidden")

	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("treasury: transaction not found")

	// ErrInvalidID is returned for a missing or non-positive transaction id.
	ErrInvalidID = errors.New("treasury: invalid transaction id")

	// ErrInvalidStatus is returned when a status change targets anything
	// other than approved or rejected.
	ErrInvalidStatus = errors.New("treasury: invalid status")

	// ErrNotPending is returned when a status change is attempted on a
	// transaction that already left pending.
	ErrNotPending = errors.New("treasury: transaction is not pending")

	// ErrInsufficientBalance is returned when approving a withdrawal would
	// drive the balance negative.
	ErrInsufficientBalance = errors.New("treasury: withdrawal cannot exceed current balance")
)

// IsNotFound reports whether err means the transaction does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err is an authorization refusal.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// StatusCode maps a service error onto the HTTP status a caller should send.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrInsufficientBalance):
		return http.StatusBadRequest
	}
	if _, ok := validation.Fields(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Message returns a user-safe message for err. Store failures are reported
// generically; their cause belongs in the log.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "Forbidden."
	case errors.Is(err, ErrNotFound):
		return "Transaction not found."
	case errors.Is(err, ErrInvalidID):
		return "Invalid transaction id."
	case errors.Is(err, ErrInvalidStatus):
		return "Status must be approved or rejected."
	case errors.Is(err, ErrNotPending):
		return "Only pending transactions can be approved or rejected."
	case errors.Is(err, ErrInsufficientBalance):
		return MsgWithdrawalExceeds
	}
	if _, ok := validation.Fields(err); ok {
		return "Validation failed."
	}
	return "The treasury is unavailable right now. Please try again."
}
