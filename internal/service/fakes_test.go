package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errStoreDown = errors.New("connection refused")

type memLedger struct {
	mu    sync.Mutex
	txs   map[string]*domain.Transaction
	// fail makes the next n calls return errStoreDown; negative fails forever.
	fail  int
	calls int
	// permErr is returned by every call without touching the table.
	permErr error
	// lostReplies makes the next n creates commit and then report errStoreDown.
	lostReplies int
}

func newMemLedger() *memLedger {
	return &memLedger{txs: make(map[string]*domain.Transaction)}
}

func (l *memLedger) down() error {
	l.calls++
	if l.permErr != nil {
		return l.permErr
	}
	if l.fail == 0 {
		return nil
	}
	if l.fail > 0 {
		l.fail--
	}
	return errStoreDown
}

func (l *memLedger) add(userID string, t domain.TransactionType, amount, date string) *domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, err := domain.ParseDate(date, false)
	if err != nil {
		panic(err)
	}
	tx := &domain.Transaction{
		ID:      uuid.NewString(),
		Amount:  decimal.RequireFromString(amount),
		Concept: "seed " + amount,
		Date:    d,
		Type:    t,
		UserID:  userID,
	}
	l.txs[tx.ID] = tx
	return tx
}

func matches(q domain.TransactionQuery, tx *domain.Transaction) bool {
	if q.UserID != "" && tx.UserID != q.UserID {
		return false
	}
	if q.Type != nil && tx.Type != *q.Type {
		return false
	}
	if q.From != nil && tx.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && tx.Date.After(*q.To) {
		return false
	}
	return true
}

func (l *memLedger) Aggregate(ctx context.Context, q domain.TransactionQuery) (domain.Aggregate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return domain.Aggregate{}, err
	}
	agg := domain.Aggregate{Sum: decimal.Zero}
	for _, tx := range l.txs {
		if matches(q, tx) {
			agg.Sum = agg.Sum.Add(tx.Amount)
			agg.Count++
		}
	}
	return agg, nil
}

func (l *memLedger) List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return nil, err
	}
	var out []*domain.Transaction
	for _, tx := range l.txs {
		if matches(q, tx) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (l *memLedger) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return nil, err
	}
	tx, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (l *memLedger) Create(ctx context.Context, tx *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return err
	}
	if _, ok := l.txs[tx.ID]; ok {
		return repository.ErrConflict
	}
	cp := *tx
	l.txs[tx.ID] = &cp
	if l.lostReplies > 0 {
		l.lostReplies--
		return errStoreDown
	}
	return nil
}

func (l *memLedger) Update(ctx context.Context, id string, ch domain.TransactionChanges) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return nil, err
	}
	tx, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ch.Amount != nil {
		tx.Amount = *ch.Amount
	}
	if ch.Concept != nil {
		tx.Concept = *ch.Concept
	}
	if ch.Date != nil {
		tx.Date = *ch.Date
	}
	if ch.Type != nil {
		tx.Type = *ch.Type
	}
	cp := *tx
	return &cp, nil
}

func (l *memLedger) Delete(ctx context.Context, id string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.down(); err != nil {
		return nil, err
	}
	tx, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(l.txs, id)
	return tx, nil
}

func (l *memLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*domain.User)}
}

func (m *memUsers) add(name, email string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &domain.User{ID: uuid.NewString(), Name: name, Email: email, Role: domain.RoleForEmail(email)}
	m.users[u.ID] = u
	return u
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) List(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	cp := *u
	return &cp, nil
}

type countingReconnector struct {
	mu    sync.Mutex
	count int
}

func (r *countingReconnector) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditor) LogAdminAction(ctx context.Context, actor *domain.Identity, action, category, targetID string, details map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (n *recordingNotifier) Publish(ev domain.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type fixture struct {
	svc      *LedgerService
	ledger   *memLedger
	users    *memUsers
	store    *countingReconnector
	audit    *recordingAuditor
	notifier *recordingNotifier
	admin    *domain.Identity
	user     *domain.Identity
	other    *domain.Identity
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newFixture(strict bool) *fixture {
	users := newMemUsers()
	f := &fixture{
		users:    users,
		ledger:   newMemLedger(),
		store:    &countingReconnector{},
		audit:    &recordingAuditor{},
		notifier: &recordingNotifier{},
	}
	p := NewStorePolicy(3, 0, f.store)
	p.Sleep = noSleep
	f.svc = NewLedgerService(f.ledger, users, f.store, Options{
		Retry:    p,
		Strict:   strict,
		Audit:    f.audit,
		Notifier: f.notifier,
		Now:      func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) },
	})
	f.admin = domain.IdentityFromUser(users.add("Admin", "admin@example.com"))
	f.user = domain.IdentityFromUser(users.add("Test User", "user@example.com"))
	f.other = domain.IdentityFromUser(users.add("Other", "other@example.com"))
	return f
}

