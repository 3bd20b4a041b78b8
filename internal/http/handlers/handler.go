package handlers

import (
	"context"
	"time"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/service"
)

// Ledger is the engine surface the HTTP layer serves.
type Ledger interface {
	Summary(ctx context.Context, id *domain.Identity) (domain.FinancialSummary, error)
	MonthlyStats(ctx context.Context, id *domain.Identity, year int) ([]domain.MonthlyStats, error)
	ListTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error)
	GetTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, id *domain.Identity, in domain.TransactionInput) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id *domain.Identity, txID string, patch domain.TransactionPatch) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id *domain.Identity, txID string) (*domain.Transaction, error)
	ExportTransactions(ctx context.Context, id *domain.Identity, raw domain.RawFilter) ([]*domain.Transaction, error)

	Me(ctx context.Context, id *domain.Identity) (*domain.User, error)
	RoleCheck(id *domain.Identity) service.RoleStatus
	ListUsers(ctx context.Context, id *domain.Identity) ([]*domain.User, error)
	UpdateUser(ctx context.Context, id *domain.Identity, userID string, patch domain.UserPatch) (*domain.User, error)
	EnsureUser(ctx context.Context, email, name string) (*domain.User, error)
}

// TokenIssuer signs session tokens for the development login.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}

// AuditReader lists stored audit entries.
type AuditReader interface {
	ActorLogs(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error)
	RecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

type Handler struct {
	Ledger Ledger
	Tokens TokenIssuer
	Audit  AuditReader

	policy service.AccessPolicy
	now    func() time.Time
}

func NewHandler(ledger Ledger, tokens TokenIssuer, audit AuditReader) *Handler {
	return &Handler{
		Ledger: ledger,
		Tokens: tokens,
		Audit:  audit,
		now:    time.Now,
	}
}
