package treasury_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/metrics"
	"intranet-portal/pkg/metrics/memory"
	"intranet-portal/pkg/treasury"
	"intranet-portal/pkg/treasury/memstore"
	"intranet-portal/pkg/validation"

	"github.com/shopspring/decimal"
)

var (
	member    = identity.Identity{UserID: 10, Name: "Mia", Role: identity.RoleMember}
	stranger  = identity.Identity{UserID: 11, Name: "Sam", Role: identity.RoleMember}
	treasurer = identity.Identity{UserID: 20, Name: "Tess", Role: identity.RoleTreasurer}
)

// recordingAudit keeps every event and optionally fails.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (r *recordingAudit) Log(ctx context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store   *memstore.Store
	audit   *recordingAudit
	metrics *memory.MemoryCollector
	svc     *treasury.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(),
		audit:   &recordingAudit{},
		metrics: memory.NewMemoryCollector(),
	}
	f.svc = treasury.NewService(treasury.Dependencies{
		Store:   f.store,
		Audit:   f.audit,
		Metrics: f.metrics,
	})
	return f
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func idPtr(v int64) *int64 { return &v }

func (f *fixture) seed(typ treasury.Type, amt string, status treasury.Status, owner int64) int64 {
	return f.store.Seed(treasury.Transaction{
		CashboxID: 1,
		Type:      typ,
		Amount:    amount(amt),
		Status:    status,
		CreatedBy: idPtr(owner),
	})[0]
}

func TestService_StoreCreatesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.Store(ctx, member, treasury.Input{
		Type:        "deposit",
		Amount:      "25.50",
		Description: "  bake sale  ",
		Status:      "approved",
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if tx.Status != treasury.StatusPending {
		t.Errorf("Expected pending, got %s", tx.Status)
	}
	if tx.CreatedBy == nil || *tx.CreatedBy != member.UserID {
		t.Errorf("Expected creator %d, got %v", member.UserID, tx.CreatedBy)
	}
	if tx.Description != "bake sale" {
		t.Errorf("Expected trimmed description, got %q", tx.Description)
	}
	if !tx.Amount.Equal(amount("25.50")) {
		t.Errorf("Expected amount 25.50, got %s", tx.Amount)
	}
	if tx.CashboxID != 1 {
		t.Errorf("Expected default cashbox 1, got %d", tx.CashboxID)
	}

	if got := f.audit.types(); len(got) != 1 || got[0] != "treasury.create" {
		t.Errorf("Expected one create event, got %v", got)
	}
	if n := f.metrics.LedgerCount("store", metrics.OutcomeOK); n != 1 {
		t.Errorf("Expected 1 successful store metric, got %d", n)
	}
}

func TestService_StoreWithdrawalCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(treasury.Deposit, "100.00", treasury.StatusApproved, treasurer.UserID)

	_, err := f.svc.Store(ctx, member, treasury.Input{Type: "withdrawal", Amount: "100.01", Description: "x"})
	fields, ok := validation.Fields(err)
	if !ok || !fields.Has("amount") {
		t.Fatalf("Expected amount validation error, got %v", err)
	}
	if treasury.StatusCode(err) != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", treasury.StatusCode(err))
	}
	if n := f.metrics.LedgerCount("store", metrics.OutcomeInvalid); n != 1 {
		t.Errorf("Expected invalid outcome recorded, got %d", n)
	}

	if _, err := f.svc.Store(ctx, member, treasury.Input{Type: "withdrawal", Amount: "100.00", Description: "x"}); err != nil {
		t.Errorf("Expected withdrawal of full balance to pass, got %v", err)
	}
}

func TestService_StoreAnonymousForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Store(context.Background(), identity.Anonymous, treasury.Input{Type: "deposit", Amount: "1", Description: "x"})
	if !errors.Is(err, treasury.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestService_AuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("audit sink down")

	tx, err := f.svc.Store(context.Background(), member, treasury.Input{Type: "deposit", Amount: "5", Description: "dues"})
	if err != nil {
		t.Fatalf("Expected store to succeed despite audit failure, got %v", err)
	}
	if _, err := f.store.FindByID(context.Background(), tx.ID); err != nil {
		t.Errorf("Expected row to be persisted, got %v", err)
	}
}

func TestService_StoreFailureIsOpaque(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("connection refused")

	_, err := f.svc.Index(context.Background(), member)
	if err == nil {
		t.Fatal("Expected error")
	}
	if treasury.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", treasury.StatusCode(err))
	}
	if msg := treasury.Message(err); msg == err.Error() {
		t.Errorf("Expected generic message, got cause %q", msg)
	}
}

func TestService_UpdateMemberCannotChangeTypeOrStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(treasury.Deposit, "500.00", treasury.StatusApproved, treasurer.UserID)
	id := f.seed(treasury.Deposit, "10.00", treasury.StatusPending, member.UserID)

	tx, err := f.svc.Update(ctx, member, id, treasury.Input{
		Type:        "withdrawal",
		Amount:      "12.00",
		Description: "corrected",
		Status:      "approved",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if tx.Type != treasury.Deposit {
		t.Errorf("Expected type reset to deposit, got %s", tx.Type)
	}
	if tx.Status != treasury.StatusPending {
		t.Errorf("Expected status reset to pending, got %s", tx.Status)
	}
	if !tx.Amount.Equal(amount("12")) || tx.Description != "corrected" {
		t.Errorf("Expected amount and description applied, got %s %q", tx.Amount, tx.Description)
	}
	if tx.ApprovedBy != nil {
		t.Error("Expected no approver after member edit")
	}
}

func TestService_UpdateGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approvedOwn := f.seed(treasury.Deposit, "10.00", treasury.StatusApproved, member.UserID)
	pendingOwn := f.seed(treasury.Deposit, "10.00", treasury.StatusPending, member.UserID)

	in := treasury.Input{Amount: "1", Description: "x"}

	tests := []struct {
		name     string
		actor    identity.Identity
		id       int64
		expected error
	}{
		{"member on own approved", member, approvedOwn, treasury.ErrForbidden},
		{"stranger on pending", stranger, pendingOwn, treasury.ErrForbidden},
		{"anonymous", identity.Anonymous, pendingOwn, treasury.ErrForbidden},
		{"missing row", treasurer, 999, treasury.ErrNotFound},
		{"bad id", treasurer, 0, treasury.ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.actor, tt.id, in)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestService_UpdateEditCounterfactual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(treasury.Deposit, "150.00", treasury.StatusApproved, treasurer.UserID)
	id := f.seed(treasury.Withdrawal, "50.00", treasury.StatusApproved, treasurer.UserID)

	_, err := f.svc.Update(ctx, treasurer, id, treasury.Input{Type: "withdrawal", Amount: "150.01", Description: "rent"})
	if fields, ok := validation.Fields(err); !ok || !fields.Has("amount") {
		t.Fatalf("Expected amount error for 150.01, got %v", err)
	}

	tx, err := f.svc.Update(ctx, treasurer, id, treasury.Input{Type: "withdrawal", Amount: "149.99", Description: "rent"})
	if err != nil {
		t.Fatalf("Expected 149.99 to pass, got %v", err)
	}
	if tx.Status != treasury.StatusApproved {
		t.Errorf("Expected status kept, got %s", tx.Status)
	}
}

func TestService_UpdateModeratorStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.seed(treasury.Deposit, "10.00", treasury.StatusPending, member.UserID)
	approved := f.seed(treasury.Deposit, "10.00", treasury.StatusApproved, member.UserID)

	tx, err := f.svc.Update(ctx, treasurer, pending, treasury.Input{Type: "deposit", Amount: "10", Description: "ok", Status: "approved"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if tx.Status != treasury.StatusApproved || tx.ApprovedBy == nil || *tx.ApprovedBy != treasurer.UserID {
		t.Errorf("Expected approved by %d, got %s %v", treasurer.UserID, tx.Status, tx.ApprovedBy)
	}
	types := f.audit.types()
	if len(types) != 2 || types[0] != "treasury.update" || types[1] != "treasury.approve" {
		t.Errorf("Expected update then approve events, got %v", types)
	}

	_, err = f.svc.Update(ctx, treasurer, approved, treasury.Input{Type: "deposit", Amount: "10", Description: "ok", Status: "pending"})
	fields, ok := validation.Fields(err)
	if !ok || fields["status"][0] != treasury.MsgStatusLocked {
		t.Errorf("Expected locked status error, got %v", err)
	}

	// terminal rows stay editable for moderators
	tx, err = f.svc.Update(ctx, treasurer, approved, treasury.Input{Type: "deposit", Amount: "11", Description: "fixed typo"})
	if err != nil {
		t.Fatalf("Expected moderator edit of approved row, got %v", err)
	}
	if tx.Status != treasury.StatusApproved || !tx.Amount.Equal(amount("11")) {
		t.Errorf("Unexpected row after edit: %+v", tx)
	}
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.seed(treasury.Deposit, "10.00", treasury.StatusPending, member.UserID)
	settled := f.seed(treasury.Deposit, "10.00", treasury.StatusApproved, member.UserID)

	if err := f.svc.Delete(ctx, stranger, own); !errors.Is(err, treasury.ErrForbidden) {
		t.Errorf("Expected stranger refused, got %v", err)
	}
	if err := f.svc.Delete(ctx, member, settled); !errors.Is(err, treasury.ErrForbidden) {
		t.Errorf("Expected member refused on approved row, got %v", err)
	}
	if err := f.svc.Delete(ctx, member, own); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.store.FindByID(ctx, own); !treasury.IsNotFound(err) {
		t.Errorf("Expected row gone, got %v", err)
	}
	if err := f.svc.Delete(ctx, treasurer, settled); err != nil {
		t.Errorf("Expected moderator delete, got %v", err)
	}
}

func TestService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(treasury.Deposit, "100.00", treasury.StatusApproved, treasurer.UserID)
	pending := f.seed(treasury.Withdrawal, "40.00", treasury.StatusPending, member.UserID)

	change, err := f.svc.SetStatus(ctx, treasurer, pending, "approved")
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if change.Status != treasury.StatusApproved || change.ID != pending {
		t.Errorf("Unexpected change: %+v", change)
	}
	if change.Balance.StringFixed(2) != "60.00" || change.Pending.StringFixed(2) != "0.00" {
		t.Errorf("Expected balance 60.00 pending 0.00, got %s %s",
			change.Balance.StringFixed(2), change.Pending.StringFixed(2))
	}

	row, _ := f.store.FindByID(ctx, pending)
	if row.Status != treasury.StatusApproved {
		t.Errorf("Expected stored status approved, got %s", row.Status)
	}
	if row.ApprovedBy == nil || *row.ApprovedBy != treasurer.UserID {
		t.Errorf("Expected approver %d, got %v", treasurer.UserID, row.ApprovedBy)
	}
	if row.ApprovedAt == nil {
		t.Error("Expected approval time to be set")
	}
}

func TestService_SetStatusOnTerminalRowLeavesItUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(treasury.Deposit, "10.00", treasury.StatusApproved, member.UserID)
	before, _ := f.store.FindByID(ctx, id)

	_, err := f.svc.SetStatus(ctx, treasurer, id, "rejected")
	if !errors.Is(err, treasury.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending, got %v", err)
	}
	if code := treasury.StatusCode(err); code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", code)
	}

	after, _ := f.store.FindByID(ctx, id)
	if after.Status != before.Status || after.ApprovedBy != before.ApprovedBy {
		t.Errorf("Row changed: before %+v after %+v", before, after)
	}
	if len(f.audit.types()) != 0 {
		t.Errorf("Expected no audit events, got %v", f.audit.types())
	}
}

func TestService_SetStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.seed(treasury.Deposit, "10.00", treasury.StatusPending, member.UserID)
	overdraw := f.seed(treasury.Withdrawal, "10.00", treasury.StatusPending, member.UserID)

	tests := []struct {
		name     string
		actor    identity.Identity
		id       int64
		status   string
		expected error
		code     int
	}{
		{"member", member, pending, "approved", treasury.ErrForbidden, http.StatusForbidden},
		{"bad id", treasurer, -1, "approved", treasury.ErrInvalidID, http.StatusBadRequest},
		{"missing status", treasurer, pending, "", treasury.ErrInvalidStatus, http.StatusBadRequest},
		{"pending target", treasurer, pending, "pending", treasury.ErrInvalidStatus, http.StatusBadRequest},
		{"not found", treasurer, 404, "rejected", treasury.ErrNotFound, http.StatusNotFound},
		{"overdraw", treasurer, overdraw, "approved", treasury.ErrInsufficientBalance, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetStatus(ctx, tt.actor, tt.id, tt.status)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
			if code := treasury.StatusCode(err); code != tt.code {
				t.Errorf("Expected status code %d, got %d", tt.code, code)
			}
		})
	}

	// rejecting an uncovered withdrawal is always possible
	if _, err := f.svc.SetStatus(ctx, treasurer, overdraw, "rejected"); err != nil {
		t.Errorf("Expected reject to pass, got %v", err)
	}
}

func TestService_IndexAnnotatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.store.Seed(
		treasury.Transaction{Type: treasury.Deposit, Amount: amount("100"), Status: treasury.StatusApproved, CreatedBy: idPtr(treasurer.UserID), CreatedAt: base},
		treasury.Transaction{Type: treasury.Withdrawal, Amount: amount("20"), Status: treasury.StatusPending, CreatedBy: idPtr(member.UserID), CreatedAt: base.Add(time.Hour)},
		treasury.Transaction{Type: treasury.Deposit, Amount: amount("5"), Status: treasury.StatusPending, CreatedBy: idPtr(stranger.UserID), CreatedAt: base.Add(2 * time.Hour)},
	)

	ledger, err := f.svc.Index(ctx, member)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if len(ledger.Entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(ledger.Entries))
	}
	if ledger.Entries[0].ID != 3 || ledger.Entries[2].ID != 1 {
		t.Errorf("Expected newest first, got ids %d..%d", ledger.Entries[0].ID, ledger.Entries[2].ID)
	}
	if ledger.Balance.StringFixed(2) != "100.00" || ledger.Pending.StringFixed(2) != "-15.00" {
		t.Errorf("Unexpected totals %s / %s", ledger.Balance.StringFixed(2), ledger.Pending.StringFixed(2))
	}

	own := ledger.Entries[1]
	if !own.CanEdit || !own.CanDelete || own.CanApproveReject {
		t.Errorf("Unexpected flags on own pending row: %+v", own)
	}
	foreign := ledger.Entries[0]
	if foreign.CanEdit || foreign.CanDelete {
		t.Errorf("Unexpected flags on foreign row: %+v", foreign)
	}
	if !ledger.CanCreate || ledger.IsModerator {
		t.Errorf("Unexpected ledger flags: create=%v moderator=%v", ledger.CanCreate, ledger.IsModerator)
	}

	snap := f.metrics.Snapshot()
	if snap.Balance != 100 || snap.Pending != -15 {
		t.Errorf("Expected balance gauges 100/-15, got %v/%v", snap.Balance, snap.Pending)
	}

	if _, err := f.svc.Index(ctx, identity.Anonymous); !errors.Is(err, treasury.ErrForbidden) {
		t.Errorf("Expected anonymous index refused, got %v", err)
	}
}

func TestService_New(t *testing.T) {
	f := newFixture(t)
	f.seed(treasury.Deposit, "42.00", treasury.StatusApproved, treasurer.UserID)

	form, err := f.svc.New(context.Background(), member)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if form.Input.Type != "deposit" {
		t.Errorf("Expected default type deposit, got %q", form.Input.Type)
	}
	if !form.Balance.Equal(amount("42")) {
		t.Errorf("Expected balance 42, got %s", form.Balance)
	}
}

func TestService_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(treasury.Deposit, "100.00", treasury.StatusApproved, treasurer.UserID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := f.svc.Store(ctx, member, treasury.Input{Type: "withdrawal", Amount: "30", Description: "race"})
			if err != nil {
				return
			}
			_, _ = f.svc.SetStatus(ctx, treasurer, tx.ID, "approved")
		}()
	}
	wg.Wait()

	totals, _ := f.store.Totals(ctx)
	if totals.Balance.IsNegative() {
		t.Errorf("Balance went negative: %s", totals.Balance)
	}
}
