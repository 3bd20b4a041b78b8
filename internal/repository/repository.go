package repository

import (
	"errors"
	"fmt"
	"strings"

	"finance_tracker/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolProvider hands out the current connection pool. db.Store implements it
// so repositories follow pool swaps made by a reconnect.
type PoolProvider interface {
	Pool() (*pgxpool.Pool, error)
}

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("conflicting record")

// ErrConstraint is returned when the database rejects the row itself: a
// check, foreign key or data exception. Retrying cannot help, so it is a
// validation failure.
var ErrConstraint = fmt.Errorf("%w: rejected by the ledger store", domain.ErrValidation)

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code), pgerrcode.IsDataException(pgErr.Code):
			return fmt.Errorf("%s: %w (SQLSTATE %s)", op, ErrConstraint, pgErr.Code)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// whereBuilder collects AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func transactionWhere(q domain.TransactionQuery, alias string) *whereBuilder {
	w := &whereBuilder{}
	if q.UserID != "" {
		w.add(alias+"user_id = ?", q.UserID)
	}
	if q.Type != nil {
		w.add(alias+"type = ?", string(*q.Type))
	}
	if q.From != nil {
		w.add(alias+"date >= ?", *q.From)
	}
	if q.To != nil {
		w.add(alias+"date <= ?", *q.To)
	}
	return w
}
