package treasury

import "github.com/shopspring/decimal"

// CurrentBalance sums approved transactions: deposits add, withdrawals subtract.
func CurrentBalance(txs []Transaction) decimal.Decimal {
	return sumByStatus(txs, StatusApproved)
}

// PendingTotal is the signed net of all pending transactions.
// It is informational and never used as a cap.
func PendingTotal(txs []Transaction) decimal.Decimal {
	return sumByStatus(txs, StatusPending)
}

func sumByStatus(txs []Transaction, status Status) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status != status {
			continue
		}
		total = total.Add(tx.Signed())
	}
	return total
}

// Totals is the derived state of the ledger.
type Totals struct {
	Balance decimal.Decimal `json:"balance"`
	Pending decimal.Decimal `json:"pending"`
}

// ComputeTotals derives both balances from a set of rows.
func ComputeTotals(txs []Transaction) Totals {
	return Totals{
		Balance: CurrentBalance(txs),
		Pending: PendingTotal(txs),
	}
}
