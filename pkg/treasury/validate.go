package treasury

import (
	"strings"

	"intranet-portal/pkg/validation"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLength is counted in code points.
const MaxDescriptionLength = 255

// Validation messages shown next to form fields.
const (
	MsgTypeRequired        = "Type is required."
	MsgTypeInvalid         = "Type must be deposit or withdrawal."
	MsgAmountRequired      = "Amount is required."
	MsgAmountNotNumber     = "Amount must be a number."
	MsgAmountNotPositive   = "Amount must be greater than zero."
	MsgWithdrawalExceeds   = "Withdrawal cannot exceed current balance."
	MsgDescriptionRequired = "Description is required."
	MsgDescriptionTooLong  = "Description may not exceed 255 characters."
	MsgStatusInvalid       = "Status must be pending, approved or rejected."
	MsgStatusLocked        = "Status can only change while the transaction is pending."
)

// Input is the raw form submission for a create or edit.
type Input struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// ParseAmount parses a user-supplied amount and rounds it to cents.
// The returned message is empty on success.
func ParseAmount(raw string) (decimal.Decimal, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, MsgAmountRequired
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, MsgAmountNotNumber
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, MsgAmountNotPositive
	}
	return amount, ""
}

// Validate checks a proposed transaction against the field rules and, for
// withdrawals, against the balance available to it.
//
// When existing is the transaction being edited and it currently counts
// towards the balance, its effect is reversed first so the proposal is
// tested against the balance as if the original had never been booked.
func Validate(in Input, currentBalance decimal.Decimal, existing *Transaction) validation.FieldErrors {
	errs := validation.FieldErrors{}

	typ := Type(strings.TrimSpace(in.Type))
	switch {
	case typ == "":
		errs.Add("type", MsgTypeRequired)
	case !typ.Valid():
		errs.Add("type", MsgTypeInvalid)
	}

	amount, msg := ParseAmount(in.Amount)
	if msg != "" {
		errs.Add("amount", msg)
	} else if typ == Withdrawal {
		available := availableFor(currentBalance, existing)
		if amount.GreaterThan(available) {
			errs.Add("amount", MsgWithdrawalExceeds)
		}
	}

	description := strings.TrimSpace(in.Description)
	switch {
	case description == "":
		errs.Add("description", MsgDescriptionRequired)
	case validation.Length(description) > MaxDescriptionLength:
		errs.Add("description", MsgDescriptionTooLong)
	}

	return errs
}

// availableFor returns the balance a withdrawal may draw on. An approved
// original is taken back out of the balance before comparing.
func availableFor(currentBalance decimal.Decimal, existing *Transaction) decimal.Decimal {
	if existing == nil || existing.Status != StatusApproved {
		return currentBalance
	}
	if existing.Type == Withdrawal {
		return currentBalance.Add(existing.Amount)
	}
	return currentBalance.Sub(existing.Amount)
}
