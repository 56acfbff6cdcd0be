package treasury

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the direction of a ledger transaction.
type Type string

const (
	Deposit    Type = "deposit"
	Withdrawal Type = "withdrawal"
)

// Valid reports whether t is deposit or withdrawal.
func (t Type) Valid() bool {
	return t == Deposit || t == Withdrawal
}

// Status is the approval state of a transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is approved or rejected.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Transaction is a single cashbox movement.
type Transaction struct {
	ID          int64           `json:"id"`
	CashboxID   int64           `json:"cashbox_id"`
	Type        Type            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      Status          `json:"status"`
	CreatedBy   *int64          `json:"created_by"`
	ApprovedBy  *int64          `json:"approved_by"`
	CreatedAt   time.Time       `json:"created_at"`
	ApprovedAt  *time.Time      `json:"approved_at"`
}

// Signed returns the amount with the sign of its effect on the balance:
// positive for deposits, negative for withdrawals.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Withdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// OwnedBy reports whether userID created the transaction.
func (t Transaction) OwnedBy(userID int64) bool {
	return t.CreatedBy != nil && userID > 0 && *t.CreatedBy == userID
}

// NewTransaction holds the fields of a transaction about to be inserted.
type NewTransaction struct {
	CashboxID   int64
	Type        Type
	Amount      decimal.Decimal
	Description string
	Status      Status
	CreatedBy   *int64
	ApprovedBy  *int64
}

// Changes holds the mutable fields written by an update.
// ApprovedBy is only applied when Status moves out of pending.
type Changes struct {
	Type        Type
	Amount      decimal.Decimal
	Description string
	Status      Status
	ApprovedBy  *int64
}
