package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intranet-portal/pkg/treasury"

	"github.com/shopspring/decimal"
)

const defaultCashboxName = "default"

const transactionColumns = `id, cashbox_id, type, amount, description, status,
	created_by, approved_by, created_at, approved_at`

// LedgerStore implements treasury.Store.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore creates a ledger store on db.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// EnsureDefaultCashboxID returns the id of the single cashbox, creating it
// on first use.
func (s *LedgerStore) EnsureDefaultCashboxID(ctx context.Context) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cashboxes (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		defaultCashboxName)
	if err != nil {
		return 0, fmt.Errorf("ensure cashbox: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM cashboxes WHERE name = $1`, defaultCashboxName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("load cashbox: %w", err)
	}
	return id, nil
}

// Insert stores a new transaction and returns its id.
func (s *LedgerStore) Insert(ctx context.Context, tx treasury.NewTransaction) (int64, error) {
	query := `
		INSERT INTO transactions (cashbox_id, type, amount, description, status, created_by, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::bigint, CASE WHEN $7::bigint IS NULL THEN NULL ELSE now() END)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		tx.CashboxID, string(tx.Type), tx.Amount, tx.Description, string(tx.Status),
		nullInt64(tx.CreatedBy), nullInt64(tx.ApprovedBy),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// Update writes the mutable fields. The approver is only overwritten when
// changes carries one.
func (s *LedgerStore) Update(ctx context.Context, id int64, changes treasury.Changes) error {
	query := `
		UPDATE transactions
		SET type = $2, amount = $3, description = $4, status = $5,
		    approved_by = COALESCE($6::bigint, approved_by),
		    approved_at = CASE WHEN $6::bigint IS NULL THEN approved_at ELSE now() END
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		id, string(changes.Type), changes.Amount, changes.Description, string(changes.Status),
		nullInt64(changes.ApprovedBy),
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectRow(res, treasury.ErrNotFound)
}

// SetStatus changes the status and records the approver.
func (s *LedgerStore) SetStatus(ctx context.Context, id int64, status treasury.Status, approvedBy *int64) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    approved_by = COALESCE($3::bigint, approved_by),
		    approved_at = CASE WHEN $3::bigint IS NULL THEN approved_at ELSE now() END
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, string(status), nullInt64(approvedBy))
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	return expectRow(res, treasury.ErrNotFound)
}

// Delete removes a transaction.
func (s *LedgerStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// FindByID returns a transaction or treasury.ErrNotFound.
func (s *LedgerStore) FindByID(ctx context.Context, id int64) (*treasury.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, treasury.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return tx, nil
}

// FindAll returns every transaction in id order.
func (s *LedgerStore) FindAll(ctx context.Context) ([]treasury.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []treasury.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// Totals sums approved and pending amounts in the database.
func (s *LedgerStore) Totals(ctx context.Context) (treasury.Totals, error) {
	query := `
		SELECT
		    COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END)
		             FILTER (WHERE status = 'approved'), 0),
		    COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END)
		             FILTER (WHERE status = 'pending'), 0)
		FROM transactions
	`
	var balance, pending decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query).Scan(&balance, &pending); err != nil {
		return treasury.Totals{}, fmt.Errorf("sum transactions: %w", err)
	}
	return treasury.Totals{Balance: balance, Pending: pending}, nil
}

func scanTransaction(row scanner) (*treasury.Transaction, error) {
	var (
		tx                    treasury.Transaction
		typ, status           string
		createdBy, approvedBy sql.NullInt64
		approvedAt            sql.NullTime
	)
	err := row.Scan(&tx.ID, &tx.CashboxID, &typ, &tx.Amount, &tx.Description, &status,
		&createdBy, &approvedBy, &tx.CreatedAt, &approvedAt)
	if err != nil {
		return nil, err
	}
	tx.Type = treasury.Type(typ)
	tx.Status = treasury.Status(status)
	tx.CreatedBy = int64Ptr(createdBy)
	tx.ApprovedBy = int64Ptr(approvedBy)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.ApprovedAt = timePtr(approvedAt)
	return &tx, nil
}
