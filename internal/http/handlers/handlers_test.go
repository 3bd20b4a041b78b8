package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finance_tracker/internal/db"
	"finance_tracker/internal/domain"
	"finance_tracker/internal/http/middleware"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type stubLedger struct {
	err      error
	summary  domain.FinancialSummary
	txs      []*domain.Transaction
	users    []*domain.User
	lastYear int
	lastRaw  domain.RawFilter
	lastIn   domain.TransactionInput
	lastID   string
	patch    domain.TransactionPatch
}

func (s *stubLedger) Summary(ctx context.Context, id *domain.Identity) (domain.FinancialSummary, error) {
	return s.summary, s.err
}

func (s *stubLedger) MonthlyStats(ctx context.Context, id *domain.Identity, year int) ([]domain.MonthlyStats, error) {
	s.lastYear = year
	if s.err != nil {
		return nil, s.err
	}
	return domain.BucketByMonth(s.txs), nil
}

func (s *stubLedger) ListTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error) {
	s.lastRaw = raw
	return s.txs, s.err
}

func (s *stubLedger) GetTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error) {
	s.lastID = txID
	if s.err != nil {
		return nil, s.err
	}
	return s.txs[0], nil
}

func (s *stubLedger) CreateTransaction(ctx context.Context, id *domain.Identity, in domain.TransactionInput) (*domain.Transaction, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Transaction{ID: "new", Amount: in.Amount, Concept: in.Concept, Type: in.Type, UserID: id.UserID}, nil
}

func (s *stubLedger) UpdateTransaction(ctx context.Context, id *domain.Identity, txID string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	s.lastID, s.patch = txID, patch
	if s.err != nil {
		return nil, s.err
	}
	return s.txs[0], nil
}

func (s *stubLedger) DeleteTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error) {
	s.lastID = txID
	if s.err != nil {
		return nil, s.err
	}
	return s.txs[0], nil
}

func (s *stubLedger) ExportTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error) {
	s.lastRaw = raw
	return s.txs, s.err
}

func (s *stubLedger) Me(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.User{ID: id.UserID, Email: id.Email, Role: id.Role}, nil
}

func (s *stubLedger) RoleCheck(id *domain.Identity) service.RoleStatus {
	return service.RoleStatus{Authenticated: id != nil, IsAdmin: id.IsAdmin()}
}

func (s *stubLedger) ListUsers(ctx context.Context, id *domain.Identity) ([]*domain.User, error) {
	return s.users, s.err
}

func (s *stubLedger) UpdateUser(ctx context.Context, id *domain.Identity, userID string, patch domain.UserPatch) (*domain.User, error) {
	s.lastID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.User{ID: userID, Name: *patch.Name}, nil
}

func (s *stubLedger) EnsureUser(ctx context.Context, email, name string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.User{ID: "u-" + email, Email: email, Name: name, Role: domain.RoleForEmail(email)}, nil
}

type stubTokens struct{}

func (stubTokens) Generate(userID string) (string, error) { return "token-" + userID, nil }

type stubAudit struct{ actor string }

func (a *stubAudit) ActorLogs(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error) {
	a.actor = actorID
	return []*domain.AuditLog{{ID: 1, ActorID: actorID}}, nil
}

func (a *stubAudit) RecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return nil, nil
}

var (
	adminID = &domain.Identity{UserID: "a1", Email: "admin@example.com", Role: domain.RoleAdmin}
	userID  = &domain.Identity{UserID: "u1", Email: "user@example.com", Role: domain.RoleUser}
)

func newRouter(h *Handler, id *domain.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id != nil {
			middleware.SetIdentity(c, id)
		}
		c.Next()
	})
	r.GET("/summary", h.Summary)
	r.GET("/monthly", h.Monthly)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/:id", h.GetTransaction)
	r.POST("/transactions", h.CreateTransaction)
	r.PATCH("/transactions/:id", h.UpdateTransaction)
	r.DELETE("/transactions/:id", h.DeleteTransaction)
	r.GET("/reports/export", h.Export)
	r.GET("/me", h.Me)
	r.GET("/role/check", h.RoleCheck)
	r.GET("/users", h.ListUsers)
	r.PATCH("/users/:id", h.UpdateUser)
	r.POST("/auth/dev-login", h.DevLogin)
	r.GET("/audit", h.AuditLogs)
	return r
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleTxs() []*domain.Transaction {
	return []*domain.Transaction{
		{ID: "t1", Amount: decimal.RequireFromString("5000"), Concept: "Salary, Jan", Type: domain.TransactionIncome,
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), UserID: "a1", User: &domain.User{Name: "Admin"}},
	}
}

func TestSummaryHandler(t *testing.T) {
	ledger := &stubLedger{summary: domain.NewFinancialSummary(
		domain.Aggregate{Sum: decimal.NewFromInt(6000), Count: 2},
		domain.Aggregate{Sum: decimal.NewFromInt(1200), Count: 1},
	)}
	w := do(newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID), http.MethodGet, "/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := `{"totalIncome":6000,"totalExpense":1200,"balance":4800,"incomeCount":2,"expenseCount":1}`
	if w.Body.String() != want {
		t.Fatalf("body = %s, want %s", w.Body.String(), want)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.Invalid("type", "bad"), http.StatusBadRequest},
		{fmt.Errorf("create transaction: %w (SQLSTATE 23514)", repository.ErrConstraint), http.StatusBadRequest},
		{repository.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, errors.New("refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewHandler(&stubLedger{err: tt.err}, stubTokens{}, &stubAudit{})
		w := do(newRouter(h, userID), http.MethodGet, "/transactions/x", "")
		if w.Code != tt.code {
			t.Fatalf("%v: code = %d, want %d", tt.err, w.Code, tt.code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == nil {
			t.Fatalf("%v: expected error body, got %s", tt.err, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "SQLSTATE") {
			t.Fatalf("database detail leaked: %s", w.Body.String())
		}
		if tt.code >= 500 && strings.Contains(w.Body.String(), "refused") {
			t.Fatalf("store detail leaked: %s", w.Body.String())
		}
	}
}

func TestMonthlyHandlerYear(t *testing.T) {
	ledger := &stubLedger{txs: sampleTxs()}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), userID)

	w := do(r, http.MethodGet, "/monthly?year=2024", "")
	if w.Code != http.StatusOK || ledger.lastYear != 2024 {
		t.Fatalf("code %d year %d", w.Code, ledger.lastYear)
	}
	var stats []domain.MonthlyStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil || len(stats) != 12 {
		t.Fatalf("expected 12 months: %v %s", err, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/monthly?year=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	do(r, http.MethodGet, "/monthly", "")
	if ledger.lastYear != 0 {
		t.Fatalf("expected default year 0, got %d", ledger.lastYear)
	}
}

func TestListTransactionsBindsFilter(t *testing.T) {
	ledger := &stubLedger{}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodGet, "/transactions?type=INCOME&startDate=2024-01-01&endDate=2024-01-31&userId=u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := domain.RawFilter{Type: "INCOME", StartDate: "2024-01-01", EndDate: "2024-01-31", UserID: "u1"}
	if ledger.lastRaw != want {
		t.Fatalf("filter = %+v, want %+v", ledger.lastRaw, want)
	}
	if w.Body.String() != "[]" {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

func TestCreateTransactionHandler(t *testing.T) {
	ledger := &stubLedger{}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodPost, "/transactions", `{"amount":"12.50","concept":"Lunch","date":"2024-02-01","type":"EXPENSE"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !ledger.lastIn.Amount.Equal(decimal.RequireFromString("12.5")) || ledger.lastIn.Date != "2024-02-01" {
		t.Fatalf("unexpected input %+v", ledger.lastIn)
	}

	w = do(r, http.MethodPost, "/transactions", `{"amount":7,"concept":"Tip","date":"2024-02-01","type":"EXPENSE"}`)
	if w.Code != http.StatusCreated || !ledger.lastIn.Amount.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("numeric amount: %d %+v", w.Code, ledger.lastIn)
	}

	if w := do(r, http.MethodPost, "/transactions", `{"amount":`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestUpdateAndDeleteHandlers(t *testing.T) {
	ledger := &stubLedger{txs: sampleTxs()}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodPatch, "/transactions/t1", `{"concept":"Bonus"}`)
	if w.Code != http.StatusOK || ledger.lastID != "t1" || ledger.patch.Concept == nil || *ledger.patch.Concept != "Bonus" {
		t.Fatalf("update: %d %+v", w.Code, ledger.patch)
	}
	if ledger.patch.Amount != nil {
		t.Fatalf("absent fields must stay nil")
	}

	w = do(r, http.MethodDelete, "/transactions/t1", "")
	if w.Code != http.StatusOK || ledger.lastID != "t1" {
		t.Fatalf("delete: %d", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	ledger := &stubLedger{txs: sampleTxs()}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodGet, "/reports/export?startDate=2024-01-01&endDate=2024-12-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="financial-report.csv"` {
		t.Fatalf("content disposition %q", cd)
	}
	want := "Type,Amount,Concept,Date,User\nINCOME,5000.00,\"Salary, Jan\",2024-01-01,Admin\n"
	if w.Body.String() != want {
		t.Fatalf("body = %q", w.Body.String())
	}
	if ledger.lastRaw.StartDate != "2024-01-01" || ledger.lastRaw.EndDate != "2024-12-31" {
		t.Fatalf("dates not forwarded: %+v", ledger.lastRaw)
	}
}

func TestExportPDFAndFormat(t *testing.T) {
	ledger := &stubLedger{txs: sampleTxs()}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodGet, "/reports/export?format=pdf", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf export: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("body is not a pdf")
	}

	if w := do(r, http.MethodGet, "/reports/export?format=xlsx", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown format: expected 400, got %d", w.Code)
	}
}

func TestRoleCheckHandler(t *testing.T) {
	h := NewHandler(&stubLedger{}, stubTokens{}, &stubAudit{})
	tests := []struct {
		id   *domain.Identity
		want string
	}{
		{nil, `{"authenticated":false,"isAdmin":false}`},
		{userID, `{"authenticated":true,"isAdmin":false}`},
		{adminID, `{"authenticated":true,"isAdmin":true}`},
	}
	for _, tt := range tests {
		w := do(newRouter(h, tt.id), http.MethodGet, "/role/check", "")
		if w.Code != http.StatusOK || w.Body.String() != tt.want {
			t.Fatalf("role check = %d %s, want %s", w.Code, w.Body.String(), tt.want)
		}
	}
}

func TestDevLogin(t *testing.T) {
	r := newRouter(NewHandler(&stubLedger{}, stubTokens{}, &stubAudit{}), nil)

	w := do(r, http.MethodPost, "/auth/dev-login", `{"email":"admin@example.com","name":"Admin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token != "token-u-admin@example.com" || body.User.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login %+v", body)
	}
}

func TestUpdateUserHandler(t *testing.T) {
	ledger := &stubLedger{}
	r := newRouter(NewHandler(ledger, stubTokens{}, &stubAudit{}), adminID)

	w := do(r, http.MethodPatch, "/users/u1", `{"name":"Renamed"}`)
	if w.Code != http.StatusOK || ledger.lastID != "u1" {
		t.Fatalf("update user: %d %s", w.Code, w.Body.String())
	}
}

func TestAuditLogsHandler(t *testing.T) {
	audit := &stubAudit{}
	h := NewHandler(&stubLedger{}, stubTokens{}, audit)

	if w := do(newRouter(h, userID), http.MethodGet, "/audit", ""); w.Code != http.StatusForbidden {
		t.Fatalf("user: expected 403, got %d", w.Code)
	}
	if w := do(newRouter(h, adminID), http.MethodGet, "/audit?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}
	w := do(newRouter(h, adminID), http.MethodGet, "/audit?actorId=a1", "")
	if w.Code != http.StatusOK || audit.actor != "a1" {
		t.Fatalf("actor logs: %d %q", w.Code, audit.actor)
	}
	if w := do(newRouter(h, adminID), http.MethodGet, "/audit", ""); w.Body.String() != "[]" {
		t.Fatalf("recent logs: %s", w.Body.String())
	}
}

type stubStore struct {
	err    error
	status db.Status
}

func (s stubStore) Ping(ctx context.Context) error { return s.err }
func (s stubStore) Status() db.Status { return s.status }

func TestHealthHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tt := range []struct {
		err  error
		code int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		h := NewHealthHandler(stubStore{err: tt.err}, ServingMode{StrictErrors: true, RetryAttempts: 3}, "test")
		r := gin.New()
		r.GET("/health", h.Health)
		r.GET("/readyz", h.Readiness)
		r.GET("/healthz", h.Liveness)

		for _, path := range []string{"/health", "/readyz"} {
			if w := do(r, http.MethodGet, path, ""); w.Code != tt.code {
				t.Fatalf("%s with %v: code %d, want %d", path, tt.err, w.Code, tt.code)
			}
		}
		if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
			t.Fatalf("liveness must not depend on the store")
		}
	}
}

func TestReadinessReportsStoreAndMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store := stubStore{status: db.Status{Connected: true, Reconnects: 2, LastReconnect: &at, LastReconnectError: "dial refused"}}
	h := NewHealthHandler(store, ServingMode{RetryAttempts: 4, RetryBaseDelay: 250 * time.Millisecond}, "test")
	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := do(r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code %d: %s", w.Code, w.Body.String())
	}
	var got ReadinessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ready" || got.Store.Ping != "ok" || got.Store.Reconnects != 2 || !got.Store.Connected {
		t.Fatalf("unexpected store report %+v", got.Store)
	}
	if got.Store.LastReconnect == nil || !got.Store.LastReconnect.Equal(at) || got.Store.LastReconnectError != "dial refused" {
		t.Fatalf("unexpected reconnect history %+v", got.Store)
	}
	if got.Mode.StrictErrors || !got.Mode.DegradedSummaries || got.Mode.RetryAttempts != 4 || got.Mode.RetryBaseDelay != "250ms" {
		t.Fatalf("unexpected mode %+v", got.Mode)
	}
}
