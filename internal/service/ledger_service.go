package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the transaction table as the engine needs it.
type Ledger interface {
	Aggregate(ctx context.Context, q domain.TransactionQuery) (domain.Aggregate, error)
	List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	Create(ctx context.Context, tx *domain.Transaction) error
	Update(ctx context.Context, id string, ch domain.TransactionChanges) (*domain.Transaction, error)
	Delete(ctx context.Context, id string) (*domain.Transaction, error)
}

// UserStore is the user table as the engine needs it.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error)
}

// Auditor records administrative actions. Failures are the auditor's to log.
type Auditor interface {
	LogAdminAction(ctx context.Context, actor *domain.Identity, action, category, targetID string, details map[string]interface{})
}

// ChangeNotifier receives an event after every successful ledger mutation.
type ChangeNotifier interface {
	Publish(ev domain.ChangeEvent)
}

type Options struct {
	// Retry wraps every store call; the zero value means NewStorePolicy defaults.
	Retry retry.Policy
	// Strict propagates exhausted store failures from Summary instead of
	// answering with a zeroed summary.
	Strict   bool
	Audit    Auditor
	Notifier ChangeNotifier
	Now      func() time.Time
}

// LedgerService is the aggregation engine: reports, listings and admin
// mutations over the ledger, scoped by AccessPolicy.
type LedgerService struct {
	ledger   Ledger
	users    UserStore
	policy   AccessPolicy
	retry    retry.Policy
	strict   bool
	audit    Auditor
	notifier ChangeNotifier
	now      func() time.Time
}

func NewLedgerService(ledger Ledger, users UserStore, store Reconnector, opts Options) *LedgerService {
	p := opts.Retry
	if p.MaxAttempts == 0 {
		p = NewStorePolicy(3, 100*time.Millisecond, store)
	}
	if p.Retryable == nil {
		p.Retryable = isTransient
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		ledger:   ledger,
		users:    users,
		retry:    p,
		strict:   opts.Strict,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		now:      now,
	}
}

// Summary totals income and expense over the caller's scope. When the store
// stays unavailable a non-strict service answers with a zeroed summary.
func (s *LedgerService) Summary(ctx context.Context, id *domain.Identity) (domain.FinancialSummary, error) {
	scope, err := s.policy.Scope(id, "")
	if err != nil {
		return domain.FinancialSummary{}, err
	}

	summary, err := retry.Value(ctx, s.retry, "summary", func(ctx context.Context) (domain.FinancialSummary, error) {
		income, err := s.aggregate(ctx, scope, domain.TransactionIncome)
		if err != nil {
			return domain.FinancialSummary{}, err
		}
		expense, err := s.aggregate(ctx, scope, domain.TransactionExpense)
		if err != nil {
			return domain.FinancialSummary{}, err
		}
		return domain.NewFinancialSummary(income, expense), nil
	})
	if err == nil {
		return summary, nil
	}

	if s.strict || !isTransient(err) || ctx.Err() != nil {
		return domain.FinancialSummary{}, storeFailure("summary", err)
	}

	reportsDegraded.WithLabelValues("summary").Inc()
	logger.WithContext(ctx).Error("financial summary degraded to zero values",
		"error", err, "user_id", id.UserID, "scope_all", scope.All)
	return zeroSummary(), nil
}

func zeroSummary() domain.FinancialSummary {
	return domain.NewFinancialSummary(
		domain.Aggregate{Sum: decimal.Zero},
		domain.Aggregate{Sum: decimal.Zero},
	)
}

func (s *LedgerService) aggregate(ctx context.Context, scope Scope, t domain.TransactionType) (domain.Aggregate, error) {
	q := scope.Query()
	q.Type = &t
	return s.ledger.Aggregate(ctx, q)
}

// MonthlyStats buckets the caller's transactions of year into twelve months,
// January first. A zero year means the current UTC year.
func (s *LedgerService) MonthlyStats(ctx context.Context, id *domain.Identity, year int) ([]domain.MonthlyStats, error) {
	scope, err := s.policy.Scope(id, "")
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if year < 1 || year > 9999 {
		return nil, domain.Invalid("year", "must be between 1 and 9999")
	}

	start, end := domain.YearBounds(year)
	q := scope.Query()
	q.From, q.To = &start, &end

	txs, err := retry.Value(ctx, s.retry, "monthly_stats", func(ctx context.Context) ([]*domain.Transaction, error) {
		return s.ledger.List(ctx, q)
	})
	if err != nil {
		return nil, storeFailure("monthly_stats", err)
	}
	return domain.BucketByMonth(txs), nil
}

// ListTransactions returns the caller's transactions matching raw, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error) {
	if err := s.policy.RequireIdentity(id); err != nil {
		return nil, err
	}
	q, err := s.scopedQuery(id, raw)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "list_transactions", q)
}

// ExportTransactions lists transactions for a report download. ADMIN only;
// all users unless the filter names one.
func (s *LedgerService) ExportTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	q, err := s.scopedQuery(id, raw)
	if err != nil {
		return nil, err
	}
	txs, err := s.list(ctx, "export_transactions", q)
	if err != nil {
		return nil, err
	}
	s.record(ctx, id, domain.AuditActionReportExport, domain.AuditCategoryReport, "", map[string]interface{}{
		"rows":       len(txs),
		"start_date": raw.StartDate,
		"end_date":   raw.EndDate,
		"user_id":    raw.UserID,
	})
	return txs, nil
}

func (s *LedgerService) scopedQuery(id *domain.Identity, raw domain.RawFilter) (domain.TransactionQuery, error) {
	f, err := domain.ParseFilter(raw)
	if err != nil {
		return domain.TransactionQuery{}, err
	}
	scope, err := s.policy.Scope(id, f.UserID)
	if err != nil {
		return domain.TransactionQuery{}, err
	}
	q := scope.Query()
	if q.UserID != "" && !validID(q.UserID) {
		return domain.TransactionQuery{}, domain.Invalid("userId", "must be a user id")
	}
	q.Type = f.Type
	q.From = f.StartDate
	q.To = f.EndDate
	return q, nil
}

func (s *LedgerService) list(ctx context.Context, op string, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	txs, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) ([]*domain.Transaction, error) {
		return s.ledger.List(ctx, q)
	})
	if err != nil {
		return nil, storeFailure(op, err)
	}
	return txs, nil
}

// GetTransaction returns one transaction if the caller may see it.
func (s *LedgerService) GetTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error) {
	if err := s.policy.RequireIdentity(id); err != nil {
		return nil, err
	}
	tx, err := s.fetch(ctx, "get_transaction", txID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(id, tx.UserID) {
		return nil, domain.ErrUnauthorized
	}
	return tx, nil
}

func (s *LedgerService) fetch(ctx context.Context, op, txID string) (*domain.Transaction, error) {
	if !validID(txID) {
		return nil, domain.ErrNotFound
	}
	tx, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) (*domain.Transaction, error) {
		return s.ledger.GetByID(ctx, txID)
	})
	if err != nil {
		return nil, storeFailure(op, err)
	}
	return tx, nil
}

// CreateTransaction records a new transaction. ADMIN only; the caller owns
// it unless the input names another existing user.
func (s *LedgerService) CreateTransaction(ctx context.Context, id *domain.Identity, in domain.TransactionInput) (*domain.Transaction, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}

	tx, err := newTransaction(in)
	if err != nil {
		return nil, err
	}

	owner, err := s.owner(ctx, id, strings.TrimSpace(in.UserID))
	if err != nil {
		return nil, err
	}
	tx.UserID = owner.ID

	attempt := 0
	err = s.retry.Do(ctx, "create_transaction", func(ctx context.Context) error {
		attempt++
		err := s.ledger.Create(ctx, tx)
		if attempt > 1 && errors.Is(err, repository.ErrConflict) {
			// The id is fresh, so a conflict on a retry means an earlier
			// attempt committed before its reply was lost.
			return s.adoptStored(ctx, tx, err)
		}
		return err
	})
	if err != nil {
		return nil, storeFailure("create_transaction", err)
	}
	tx.User = owner

	s.record(ctx, id, domain.AuditActionTransactionCreate, domain.AuditCategoryTransaction, tx.ID, map[string]interface{}{
		"amount":  tx.Amount.String(),
		"type":    string(tx.Type),
		"user_id": tx.UserID,
	})
	s.publish(domain.ChangeCreated, tx)
	return tx, nil
}

// adoptStored replaces tx's timestamps with those of the committed row. When
// the row is not there the conflict was real and conflictErr stands.
func (s *LedgerService) adoptStored(ctx context.Context, tx *domain.Transaction, conflictErr error) error {
	stored, err := s.ledger.GetByID(ctx, tx.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return conflictErr
	}
	if err != nil {
		return err
	}
	if stored.UserID != tx.UserID || !stored.Amount.Equal(tx.Amount) {
		return conflictErr
	}
	tx.CreatedAt, tx.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *LedgerService) owner(ctx context.Context, id *domain.Identity, userID string) (*domain.User, error) {
	if userID == "" {
		userID = id.UserID
	} else if !validID(userID) {
		return nil, domain.Invalid("userId", "unknown user")
	}
	u, err := retry.Value(ctx, s.retry, "get_user", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		if userID != id.UserID && errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("userId", "unknown user")
		}
		return nil, storeFailure("get_user", err)
	}
	return u, nil
}

// UpdateTransaction applies patch to an existing transaction. ADMIN only.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id *domain.Identity, txID string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}

	changes, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}

	existing, err := s.fetch(ctx, "get_transaction", txID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return existing, nil
	}

	tx, err := retry.Value(ctx, s.retry, "update_transaction", func(ctx context.Context) (*domain.Transaction, error) {
		return s.ledger.Update(ctx, txID, changes)
	})
	if err != nil {
		return nil, storeFailure("update_transaction", err)
	}

	s.record(ctx, id, domain.AuditActionTransactionUpdate, domain.AuditCategoryTransaction, tx.ID, patchDetails(patch))
	s.publish(domain.ChangeUpdated, tx)
	return tx, nil
}

// DeleteTransaction removes a transaction and returns it. ADMIN only.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}

	if _, err := s.fetch(ctx, "get_transaction", txID); err != nil {
		return nil, err
	}

	tx, err := retry.Value(ctx, s.retry, "delete_transaction", func(ctx context.Context) (*domain.Transaction, error) {
		return s.ledger.Delete(ctx, txID)
	})
	if err != nil {
		return nil, storeFailure("delete_transaction", err)
	}

	s.record(ctx, id, domain.AuditActionTransactionDelete, domain.AuditCategoryTransaction, tx.ID, map[string]interface{}{
		"amount":  tx.Amount.String(),
		"type":    string(tx.Type),
		"user_id": tx.UserID,
	})
	s.publish(domain.ChangeDeleted, tx)
	return tx, nil
}

func (s *LedgerService) record(ctx context.Context, id *domain.Identity, action, category, targetID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.LogAdminAction(ctx, id, action, category, targetID, details)
}

func (s *LedgerService) publish(action domain.ChangeAction, tx *domain.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(domain.ChangeEvent{
		Type:          domain.ChangeEventType,
		Action:        action,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		At:            s.now().UTC(),
	})
}

// maxAmount is the first value a NUMERIC(14,2) column cannot hold.
var maxAmount = decimal.New(1, 12)

// normalizeAmount rounds to cents and rejects what would not be stored as a
// positive NUMERIC(14,2).
func normalizeAmount(a decimal.Decimal) (decimal.Decimal, error) {
	a = a.Round(2)
	if !a.IsPositive() {
		return a, domain.Invalid("amount", "must be at least 0.01")
	}
	if a.GreaterThanOrEqual(maxAmount) {
		return a, domain.Invalid("amount", "must be less than 1000000000000")
	}
	return a, nil
}

func newTransaction(in domain.TransactionInput) (*domain.Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	concept := strings.TrimSpace(in.Concept)
	if concept == "" {
		return nil, domain.Invalid("concept", "must not be empty")
	}
	t := domain.TransactionType(strings.ToUpper(string(in.Type)))
	if !t.Valid() {
		return nil, domain.Invalid("type", "must be INCOME or EXPENSE")
	}
	date, err := parseTransactionDate(in.Date)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:      uuid.NewString(),
		Amount:  amount,
		Concept: concept,
		Date:    date,
		Type:    t,
	}, nil
}

func validatePatch(p domain.TransactionPatch) (domain.TransactionChanges, error) {
	var ch domain.TransactionChanges
	if p.Amount != nil {
		a, err := normalizeAmount(*p.Amount)
		if err != nil {
			return ch, err
		}
		ch.Amount = &a
	}
	if p.Concept != nil {
		c := strings.TrimSpace(*p.Concept)
		if c == "" {
			return ch, domain.Invalid("concept", "must not be empty")
		}
		ch.Concept = &c
	}
	if p.Type != nil {
		t := domain.TransactionType(strings.ToUpper(string(*p.Type)))
		if !t.Valid() {
			return ch, domain.Invalid("type", "must be INCOME or EXPENSE")
		}
		ch.Type = &t
	}
	if p.Date != nil {
		d, err := parseTransactionDate(*p.Date)
		if err != nil {
			return ch, err
		}
		ch.Date = &d
	}
	return ch, nil
}

func parseTransactionDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.Invalid("date", "must not be empty")
	}
	d, err := domain.ParseDate(s, false)
	if err != nil {
		return time.Time{}, domain.Invalid("date", err.Error())
	}
	return d, nil
}

func patchDetails(p domain.TransactionPatch) map[string]interface{} {
	details := make(map[string]interface{})
	if p.Amount != nil {
		details["amount"] = p.Amount.String()
	}
	if p.Concept != nil {
		details["concept"] = *p.Concept
	}
	if p.Date != nil {
		details["date"] = *p.Date
	}
	if p.Type != nil {
		details["type"] = string(*p.Type)
	}
	return details
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
