package treasury

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate_Fields(t *testing.T) {
	balance := decimal.RequireFromString("100.00")

	tests := []struct {
		name     string
		input    Input
		field    string
		expected string
	}{
		{"missing type", Input{Amount: "1", Description: "x"}, "type", MsgTypeRequired},
		{"bad type", Input{Type: "transfer", Amount: "1", Description: "x"}, "type", MsgTypeInvalid},
		{"missing amount", Input{Type: "deposit", Description: "x"}, "amount", MsgAmountRequired},
		{"non numeric amount", Input{Type: "deposit", Amount: "ten", Description: "x"}, "amount", MsgAmountNotNumber},
		{"zero amount", Input{Type: "deposit", Amount: "0", Description: "x"}, "amount", MsgAmountNotPositive},
		{"negative amount", Input{Type: "withdrawal", Amount: "-5", Description: "x"}, "amount", MsgAmountNotPositive},
		{"rounds to zero", Input{Type: "deposit", Amount: "0.004", Description: "x"}, "amount", MsgAmountNotPositive},
		{"missing description", Input{Type: "deposit", Amount: "1", Description: "   "}, "description", MsgDescriptionRequired},
		{"long description", Input{Type: "deposit", Amount: "1", Description: strings.Repeat("a", 256)}, "description", MsgDescriptionTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.input, balance, nil)
			msgs := errs[tt.field]
			if len(msgs) != 1 || msgs[0] != tt.expected {
				t.Errorf("Expected %s error %q, got %v", tt.field, tt.expected, errs)
			}
		})
	}
}

func TestValidate_DescriptionCountsCodePoints(t *testing.T) {
	// 255 two-byte runes: 510 bytes but within the limit
	desc := strings.Repeat("é", 255)
	errs := Validate(Input{Type: "deposit", Amount: "1", Description: desc}, decimal.Zero, nil)
	if !errs.Valid() {
		t.Errorf("Expected 255 code points to be valid, got %v", errs)
	}

	errs = Validate(Input{Type: "deposit", Amount: "1", Description: desc + "é"}, decimal.Zero, nil)
	if !errs.Has("description") {
		t.Error("Expected 256 code points to be rejected")
	}
}

func TestValidate_WithdrawalCapOnCreate(t *testing.T) {
	balance := decimal.RequireFromString("100.00")

	errs := Validate(Input{Type: "withdrawal", Amount: "100.01", Description: "too much"}, balance, nil)
	if got := errs["amount"]; len(got) != 1 || got[0] != MsgWithdrawalExceeds {
		t.Errorf("Expected withdrawal cap error, got %v", errs)
	}

	errs = Validate(Input{Type: "withdrawal", Amount: "100.00", Description: "exact"}, balance, nil)
	if !errs.Valid() {
		t.Errorf("Expected exact balance withdrawal to pass, got %v", errs)
	}

	for _, amount := range []string{"0", "-1"} {
		errs = Validate(Input{Type: "withdrawal", Amount: amount, Description: "bad"}, balance, nil)
		if got := errs["amount"]; len(got) != 1 || got[0] != MsgAmountNotPositive {
			t.Errorf("Amount %s: expected positivity error, got %v", amount, errs)
		}
	}
}

func TestValidate_DepositIgnoresBalance(t *testing.T) {
	errs := Validate(Input{Type: "deposit", Amount: "5000", Description: "grant"}, decimal.Zero, nil)
	if !errs.Valid() {
		t.Errorf("Expected deposit to pass with empty cashbox, got %v", errs)
	}
}

func TestValidate_EditReversesOriginal(t *testing.T) {
	// 150 deposited, the edited 50 withdrawal already booked: balance 100
	balance := decimal.RequireFromString("100.00")
	existing := &Transaction{
		ID:     7,
		Type:   Withdrawal,
		Amount: decimal.RequireFromString("50.00"),
		Status: StatusApproved,
	}

	errs := Validate(Input{Type: "withdrawal", Amount: "149.99", Description: "rent"}, balance, existing)
	if !errs.Valid() {
		t.Errorf("Expected 149.99 to fit the reversed balance of 150, got %v", errs)
	}

	errs = Validate(Input{Type: "withdrawal", Amount: "150.01", Description: "rent"}, balance, existing)
	if !errs.Has("amount") {
		t.Error("Expected 150.01 to exceed the reversed balance of 150")
	}

	errs = Validate(Input{Type: "withdrawal", Amount: "50.00", Description: "renamed"}, balance, existing)
	if !errs.Valid() {
		t.Errorf("Expected description-only edit to pass, got %v", errs)
	}
}

func TestValidate_EditOfApprovedDeposit(t *testing.T) {
	// A 100 deposit is the only booking; turning it into a withdrawal must
	// be tested against a balance of zero.
	balance := decimal.RequireFromString("100.00")
	existing := &Transaction{
		Type:   Deposit,
		Amount: decimal.RequireFromString("100.00"),
		Status: StatusApproved,
	}

	errs := Validate(Input{Type: "withdrawal", Amount: "0.01", Description: "flip"}, balance, existing)
	if !errs.Has("amount") {
		t.Error("Expected withdrawal against reversed zero balance to fail")
	}
}

func TestValidate_PendingOriginalNotReversed(t *testing.T) {
	balance := decimal.RequireFromString("100.00")
	existing := &Transaction{
		Type:   Withdrawal,
		Amount: decimal.RequireFromString("50.00"),
		Status: StatusPending,
	}

	errs := Validate(Input{Type: "withdrawal", Amount: "120.00", Description: "x"}, balance, existing)
	if !errs.Has("amount") {
		t.Error("Expected pending original to leave the balance untouched")
	}
}

func TestParseAmount(t *testing.T) {
	amount, msg := ParseAmount(" 12.345 ")
	if msg != "" {
		t.Fatalf("Unexpected message: %s", msg)
	}
	if amount.StringFixed(2) != "12.35" {
		t.Errorf("Expected rounding to 12.35, got %s", amount.StringFixed(2))
	}
}
