package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/manual"
	"intranet-portal/pkg/poll"
	"intranet-portal/pkg/treasury"

	"github.com/shopspring/decimal"
)

// openTestDB migrates a fresh schema into the database named by
// PORTAL_TEST_DATABASE_URL. The tests drop every table first.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	raw := os.Getenv("PORTAL_TEST_DATABASE_URL")
	if raw == "" {
		t.Skip("PORTAL_TEST_DATABASE_URL not set")
	}
	cfg, err := ParseURL(raw)
	if err != nil {
		t.Fatalf("ParseURL failed: %v", err)
	}
	if err := MigrateDown(cfg, 0); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if err := MigrateUp(cfg); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	id, err := NewUserStore(db).Create(context.Background(), auth.User{
		Name: "Test", Email: email, PasswordHash: "x", Role: identity.RoleMember, Status: auth.StatusApproved,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func TestLedgerStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewLedgerStore(db)
	owner := createUser(t, db, "owner@example.org")

	cashbox, err := store.EnsureDefaultCashboxID(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultCashboxID failed: %v", err)
	}
	again, _ := store.EnsureDefaultCashboxID(ctx)
	if again != cashbox {
		t.Errorf("Expected a single cashbox, got %d and %d", cashbox, again)
	}

	insert := func(typ treasury.Type, amount string, status treasury.Status) int64 {
		id, err := store.Insert(ctx, treasury.NewTransaction{
			CashboxID: cashbox, Type: typ, Amount: decimal.RequireFromString(amount),
			Description: "test", Status: status, CreatedBy: &owner,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		return id
	}
	insert(treasury.Deposit, "150.10", treasury.StatusApproved)
	insert(treasury.Withdrawal, "50.05", treasury.StatusApproved)
	pendingID := insert(treasury.Deposit, "10.00", treasury.StatusPending)

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if !totals.Balance.Equal(decimal.RequireFromString("100.05")) || !totals.Pending.Equal(decimal.RequireFromString("10")) {
		t.Errorf("Unexpected totals: %+v", totals)
	}

	all, _ := store.FindAll(ctx)
	if computed := treasury.ComputeTotals(all); !computed.Balance.Equal(totals.Balance) {
		t.Errorf("SQL totals %s disagree with computed %s", totals.Balance, computed.Balance)
	}

	if err := store.SetStatus(ctx, pendingID, treasury.StatusApproved, &owner); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	tx, _ := store.FindByID(ctx, pendingID)
	if tx.Status != treasury.StatusApproved || tx.ApprovedBy == nil || *tx.ApprovedBy != owner || tx.ApprovedAt == nil {
		t.Errorf("Unexpected approved row: %+v", tx)
	}

	if err := store.SetStatus(ctx, 9999, treasury.StatusApproved, &owner); !errors.Is(err, treasury.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.FindByID(ctx, 9999); !errors.Is(err, treasury.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	createUser(t, db, "dup@example.org")

	_, err := NewUserStore(db).Create(context.Background(), auth.User{
		Name: "Again", Email: "dup@example.org", PasswordHash: "x", Role: identity.RoleMember, Status: auth.StatusPending,
	})
	if !errors.Is(err, auth.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestPollStore_OneVotePerUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewPollStore(db)
	voter := createUser(t, db, "voter@example.org")

	id, err := store.Create(ctx, "Where to?", []string{"Porto", "Lisbon"}, voter)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	p, _ := store.FindByID(ctx, id)
	if len(p.Options) != 2 || p.Options[0].Label != "Porto" {
		t.Fatalf("Unexpected poll: %+v", p)
	}

	if err := store.Vote(ctx, id, p.Options[0].ID, voter); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if err := store.Vote(ctx, id, p.Options[1].ID, voter); !errors.Is(err, poll.ErrAlreadyVoted) {
		t.Errorf("Expected ErrAlreadyVoted, got %v", err)
	}

	p, _ = store.FindByID(ctx, id)
	if p.Options[0].Votes != 1 || p.Options[1].Votes != 0 {
		t.Errorf("Unexpected counts: %+v", p.Options)
	}
	choice, found, _ := store.VoteOf(ctx, id, voter)
	if !found || choice != p.Options[0].ID {
		t.Errorf("Expected vote for option %d, got %d (%v)", p.Options[0].ID, choice, found)
	}
}

func TestArticleStore_Attachments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewArticleStore(db)
	author := createUser(t, db, "author@example.org")

	id, err := store.Create(ctx, manual.Article{
		Title: "100% guide", Category: "Basics", Content: "Some content here", CreatedByUserID: &author,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, _ := store.FindAll(ctx, manual.Filter{Query: "100%"})
	if len(found) != 1 {
		t.Errorf("Expected literal %% match, got %d articles", len(found))
	}
	none, _ := store.FindAll(ctx, manual.Filter{Query: "1_0"})
	if len(none) != 0 {
		t.Errorf("Expected underscore to be literal, got %d articles", len(none))
	}

	att := manual.Attachment{ArticleID: id, FileName: "a.pdf", StoredName: "x.pdf", MimeType: "application/pdf", Size: 3}
	if _, err := store.AddAttachment(ctx, att); err != nil {
		t.Fatalf("AddAttachment failed: %v", err)
	}
	if _, err := store.AddAttachment(ctx, att); !errors.Is(err, manual.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if list, _ := store.ListAttachments(ctx, id); len(list) != 0 {
		t.Errorf("Expected attachments to cascade, got %d", len(list))
	}
}
