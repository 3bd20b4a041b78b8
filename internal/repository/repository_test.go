package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"finance_tracker/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTransactionWhere(t *testing.T) {
	income := domain.TransactionIncome
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	cases := []struct {
		name  string
		q     domain.TransactionQuery
		alias string
		want  string
		args  int
	}{
		{"all users", domain.TransactionQuery{}, "", "", 0},
		{"scoped", domain.TransactionQuery{UserID: "u1"}, "t.", " WHERE t.user_id = $1", 1},
		{
			"everything",
			domain.TransactionQuery{UserID: "u1", Type: &income, From: &from, To: &to},
			"",
			" WHERE user_id = $1 AND type = $2 AND date >= $3 AND date <= $4",
			4,
		},
		{"range only", domain.TransactionQuery{From: &from}, "t.", " WHERE t.date >= $1", 1},
	}

	for _, tc := range cases {
		w := transactionWhere(tc.q, tc.alias)
		if got := w.sql(); got != tc.want {
			t.Fatalf("%s: sql = %q; want %q", tc.name, got, tc.want)
		}
		if len(w.args) != tc.args {
			t.Fatalf("%s: args = %d; want %d", tc.name, len(w.args), tc.args)
		}
	}
}

func TestMapErr(t *testing.T) {
	if err := mapErr("get", nil); err != nil {
		t.Fatalf("mapErr(nil) = %v", err)
	}
	if err := mapErr("get", pgx.ErrNoRows); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no rows should map to ErrNotFound, got %v", err)
	}
	dup := &pgconn.PgError{Code: "23505"}
	if err := mapErr("create", fmt.Errorf("insert: %w", dup)); !errors.Is(err, ErrConflict) {
		t.Fatalf("unique violation should map to ErrConflict, got %v", err)
	}
	for _, code := range []string{"23514", "23503", "22003", "22P02"} {
		err := mapErr("create", &pgconn.PgError{Code: code})
		if !errors.Is(err, ErrConstraint) || !errors.Is(err, domain.ErrValidation) || errors.Is(err, ErrConflict) {
			t.Fatalf("SQLSTATE %s should map to ErrConstraint, got %v", code, err)
		}
	}
	if err := mapErr("list", &pgconn.PgError{Code: "57P01"}); errors.Is(err, ErrConstraint) || domain.IsDomainError(err) {
		t.Fatalf("admin shutdown must stay retryable, got %v", err)
	}
	boom := errors.New("conn reset")
	if err := mapErr("list", boom); !errors.Is(err, boom) || domain.IsDomainError(err) {
		t.Fatalf("transport errors must stay wrapped and retryable, got %v", err)
	}
}
