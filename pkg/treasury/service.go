package treasury

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/identity"
	"intranet-portal/pkg/lock"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/metrics"
	"intranet-portal/pkg/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service implements the treasury use cases on top of a Store.
type Service struct {
	store   Store
	audit   audit.Logger
	locker  Locker
	metrics metrics.Collector
	logger  *logging.Logger
}

// Dependencies wires a Service. Only Store is required.
type Dependencies struct {
	Store   Store
	Audit   audit.Logger
	Locker  Locker
	Metrics metrics.Collector
	Logger  *logging.Logger
}

// NewService creates a treasury service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		store:   deps.Store,
		audit:   deps.Audit,
		locker:  deps.Locker,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	if s.audit == nil {
		s.audit = audit.NoOp{}
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOpCollector{}
	}
	if s.logger == nil {
		s.logger = logging.NewNoOpLogger()
	}
	s.logger = s.logger.Named("treasury")
	return s
}

// Ledger is the annotated transaction list shown on the treasury page.
type Ledger struct {
	Entries     []Entry         `json:"transactions"`
	Balance     decimal.Decimal `json:"balance"`
	Pending     decimal.Decimal `json:"pending"`
	CanCreate   bool            `json:"can_create"`
	IsModerator bool            `json:"is_moderator"`
}

// Form carries the defaults of an empty create form.
type Form struct {
	Input   Input           `json:"input"`
	Balance decimal.Decimal `json:"balance"`
	Pending decimal.Decimal `json:"pending"`
}

// StatusChange is the result of a successful SetStatus.
type StatusChange struct {
	ID      int64
	Status  Status
	Balance decimal.Decimal
	Pending decimal.Decimal
}

// Index lists all transactions, newest first, annotated for actor.
func (s *Service) Index(ctx context.Context, actor identity.Identity) (ledger Ledger, err error) {
	defer s.observe("index", time.Now(), &err)

	if !actor.Authenticated() {
		return Ledger{}, ErrForbidden
	}

	txs, err := s.store.FindAll(ctx)
	if err != nil {
		return Ledger{}, s.storeError("load transactions", err)
	}
	sortNewestFirst(txs)

	totals := ComputeTotals(txs)
	s.recordTotals(totals)

	entries := make([]Entry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, Annotate(actor, tx))
	}

	return Ledger{
		Entries:     entries,
		Balance:     totals.Balance,
		Pending:     totals.Pending,
		CanCreate:   CanMutate(actor, nil, ActionCreate),
		IsModerator: actor.IsModerator(),
	}, nil
}

// Refresh is Index for the asynchronous reload of the ledger table.
func (s *Service) Refresh(ctx context.Context, actor identity.Identity) (Ledger, error) {
	return s.Index(ctx, actor)
}

// New returns the defaults for the create form.
func (s *Service) New(ctx context.Context, actor identity.Identity) (Form, error) {
	if !CanMutate(actor, nil, ActionCreate) {
		return Form{}, ErrForbidden
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return Form{}, s.storeError("load totals", err)
	}
	return Form{
		Input:   Input{Type: string(Deposit)},
		Balance: totals.Balance,
		Pending: totals.Pending,
	}, nil
}

// Store records a new transaction as pending.
func (s *Service) Store(ctx context.Context, actor identity.Identity, in Input) (tx *Transaction, err error) {
	defer s.observe("store", time.Now(), &err)

	if !CanMutate(actor, nil, ActionCreate) {
		return nil, ErrForbidden
	}

	release, err := s.locker.Acquire(ctx, LedgerLockKey)
	if err != nil {
		return nil, s.storeError("acquire ledger lock", err)
	}
	defer release()

	txs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storeError("load transactions", err)
	}

	if err := Validate(in, CurrentBalance(txs), nil).Err(); err != nil {
		return nil, err
	}
	amount, _ := ParseAmount(in.Amount)

	cashboxID, err := s.store.EnsureDefaultCashboxID(ctx)
	if err != nil {
		return nil, s.storeError("resolve cashbox", err)
	}

	createdBy := actor.UserID
	id, err := s.store.Insert(ctx, NewTransaction{
		CashboxID:   cashboxID,
		Type:        Type(strings.TrimSpace(in.Type)),
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Status:      StatusPending,
		CreatedBy:   &createdBy,
	})
	if err != nil {
		return nil, s.storeError("insert transaction", err)
	}

	created, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("reload transaction", err)
	}

	s.emit(ctx, actor, "treasury.create",
		fmt.Sprintf("Transaction #%d created", id), created)
	return created, nil
}

// Edit loads a transaction for editing by actor.
func (s *Service) Edit(ctx context.Context, actor identity.Identity, id int64) (*Transaction, error) {
	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, existing, ActionEdit) {
		return nil, ErrForbidden
	}
	return existing, nil
}

// Update applies an edit. Members cannot change type or status; whatever
// they submit for those fields is replaced with the stored values.
func (s *Service) Update(ctx context.Context, actor identity.Identity, id int64, in Input) (tx *Transaction, err error) {
	defer s.observe("update", time.Now(), &err)

	if id <= 0 {
		return nil, ErrInvalidID
	}
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}

	release, err := s.locker.Acquire(ctx, LedgerLockKey)
	if err != nil {
		return nil, s.storeError("acquire ledger lock", err)
	}
	defer release()

	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, existing, ActionEdit) {
		return nil, ErrForbidden
	}

	if !actor.IsModerator() {
		in.Type = string(existing.Type)
		in.Status = string(existing.Status)
	}

	txs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, s.storeError("load transactions", err)
	}

	errs := Validate(in, CurrentBalance(txs), existing)
	target := resolveStatus(in.Status, existing.Status, errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	amount, _ := ParseAmount(in.Amount)

	changes := Changes{
		Type:        Type(strings.TrimSpace(in.Type)),
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Status:      target,
	}
	if target != existing.Status {
		approver := actor.UserID
		changes.ApprovedBy = &approver
	}

	if err := s.store.Update(ctx, id, changes); err != nil {
		return nil, s.storeError("update transaction", err)
	}

	updated, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("reload transaction", err)
	}

	s.emit(ctx, actor, "treasury.update",
		fmt.Sprintf("Transaction #%d updated", id), updated)
	if target != existing.Status {
		s.emit(ctx, actor, statusEvent(target),
			fmt.Sprintf("Transaction #%d %s", id, target), updated)
	}
	return updated, nil
}

// resolveStatus returns the status an edit ends in and records status
// errors into errs. An empty submission keeps the stored status.
func resolveStatus(raw string, current Status, errs validation.FieldErrors) Status {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return current
	}
	target := Status(raw)
	switch {
	case !target.Valid():
		errs.Add("status", MsgStatusInvalid)
		return current
	case target != current && (current != StatusPending || target == StatusPending):
		errs.Add("status", MsgStatusLocked)
		return current
	}
	return target
}

// Delete removes a transaction.
func (s *Service) Delete(ctx context.Context, actor identity.Identity, id int64) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if id <= 0 {
		return ErrInvalidID
	}
	if !actor.Authenticated() {
		return ErrForbidden
	}

	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !CanMutate(actor, existing, ActionDelete) {
		return ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError("delete transaction", err)
	}

	s.emit(ctx, actor, "treasury.delete",
		fmt.Sprintf("Transaction #%d deleted", id), existing)
	return nil
}

// SetStatus approves or rejects a pending transaction.
func (s *Service) SetStatus(ctx context.Context, actor identity.Identity, id int64, status string) (change StatusChange, err error) {
	defer s.observe("set_status", time.Now(), &err)

	if !actor.IsModerator() {
		return StatusChange{}, ErrForbidden
	}
	if id <= 0 {
		return StatusChange{}, ErrInvalidID
	}
	target := Status(strings.TrimSpace(status))
	if target != StatusApproved && target != StatusRejected {
		return StatusChange{}, ErrInvalidStatus
	}

	release, err := s.locker.Acquire(ctx, LedgerLockKey)
	if err != nil {
		return StatusChange{}, s.storeError("acquire ledger lock", err)
	}
	defer release()

	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return StatusChange{}, err
	}
	if existing.Status != StatusPending {
		return StatusChange{}, ErrNotPending
	}

	if target == StatusApproved && existing.Type == Withdrawal {
		totals, err := s.store.Totals(ctx)
		if err != nil {
			return StatusChange{}, s.storeError("load totals", err)
		}
		if existing.Amount.GreaterThan(totals.Balance) {
			return StatusChange{}, ErrInsufficientBalance
		}
	}

	approver := actor.UserID
	if err := s.store.SetStatus(ctx, id, target, &approver); err != nil {
		return StatusChange{}, s.storeError("set status", err)
	}

	totals, err := s.store.Totals(ctx)
	if err != nil {
		return StatusChange{}, s.storeError("load totals", err)
	}
	s.recordTotals(totals)

	existing.Status = target
	s.emit(ctx, actor, statusEvent(target),
		fmt.Sprintf("Transaction #%d %s", id, target), existing)

	return StatusChange{
		ID:      id,
		Status:  target,
		Balance: totals.Balance,
		Pending: totals.Pending,
	}, nil
}

// load fetches a transaction, keeping store failures opaque.
func (s *Service) load(ctx context.Context, actor identity.Identity, id int64) (*Transaction, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}
	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeError("load transaction", err)
	}
	return tx, nil
}

func (s *Service) storeError(op string, err error) error {
	s.logger.Error("treasury store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("treasury: %s: %w", op, err)
}

// emit hands an audit event to the audit logger. Failures are logged and
// otherwise ignored.
func (s *Service) emit(ctx context.Context, actor identity.Identity, eventType, message string, tx *Transaction) {
	event := audit.Event{
		Type:    eventType,
		Message: message,
		ActorID: actor.UserID,
		Metadata: map[string]interface{}{
			"transaction_id": tx.ID,
			"type":           string(tx.Type),
			"amount":         tx.Amount.StringFixed(2),
			"status":         string(tx.Status),
		},
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if err := *errp; err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			outcome = metrics.OutcomeForbidden
		case errors.Is(err, ErrNotFound):
			outcome = metrics.OutcomeNotFound
		case StatusCode(err) < 500:
			outcome = metrics.OutcomeInvalid
		default:
			outcome = metrics.OutcomeError
		}
	}
	s.metrics.RecordLedgerOperation(op, outcome, time.Since(start))
}

func (s *Service) recordTotals(t Totals) {
	balance, _ := t.Balance.Float64()
	pending, _ := t.Pending.Float64()
	s.metrics.RecordBalance(balance, pending)
}

func statusEvent(status Status) string {
	if status == StatusApproved {
		return "treasury.approve"
	}
	return "treasury.reject"
}

func sortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}
