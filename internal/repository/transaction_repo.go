package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finance_tracker/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	db PoolProvider
}

func NewTransactionRepository(db PoolProvider) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `t.id::text, t.amount::text, t.concept, t.date, t.type, t.user_id::text, t.created_at, t.updated_at,
	u.id::text, u.name, u.email, u.phone, u.role, u.created_at, u.updated_at`

// Aggregate returns sum and count of amount for the rows matching q.
func (r *TransactionRepository) Aggregate(ctx context.Context, q domain.TransactionQuery) (domain.Aggregate, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return domain.Aggregate{}, err
	}

	w := transactionWhere(q, "")
	var (
		sum   string
		count int64
	)
	err = pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM transactions`+w.sql(),
		w.args...,
	).Scan(&sum, &count)
	if err != nil {
		return domain.Aggregate{}, mapErr("aggregate transactions", err)
	}

	total, err := decimal.NewFromString(sum)
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("aggregate transactions: parse sum %q: %w", sum, err)
	}
	return domain.Aggregate{Sum: total, Count: count}, nil
}

// List returns matching transactions newest first, each with its owner.
func (r *TransactionRepository) List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}

	w := transactionWhere(q, "t.")
	rows, err := pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 JOIN users u ON u.id = t.user_id`+w.sql()+`
		 ORDER BY t.date DESC, t.created_at DESC`,
		w.args...,
	)
	if err != nil {
		return nil, mapErr("list transactions", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.id = $1`,
		id,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, mapErr("get transaction", err)
	}
	return tx, nil
}

// Create inserts tx; ID must already be set.
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	pool, err := r.db.Pool()
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx,
		`INSERT INTO transactions (id, amount, concept, date, type, user_id)
		 VALUES ($1, $2::numeric, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		tx.ID, tx.Amount.String(), tx.Concept, tx.Date, string(tx.Type), tx.UserID,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	return mapErr("create transaction", err)
}

// Update applies the non-nil fields of ch and returns the stored row.
func (r *TransactionRepository) Update(ctx context.Context, id string, ch domain.TransactionChanges) (*domain.Transaction, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if ch.Amount != nil {
		args = append(args, ch.Amount.String())
		sets = append(sets, fmt.Sprintf("amount = $%d::numeric", len(args)))
	}
	if ch.Concept != nil {
		set("concept", *ch.Concept)
	}
	if ch.Date != nil {
		set("date", *ch.Date)
	}
	if ch.Type != nil {
		set("type", string(*ch.Type))
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	tag, err := pool.Exec(ctx,
		fmt.Sprintf(`UPDATE transactions SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return nil, mapErr("update transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the transaction and returns it as it was.
func (r *TransactionRepository) Delete(ctx context.Context, id string) (*domain.Transaction, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx,
		`WITH t AS (
			DELETE FROM transactions WHERE id = $1
			RETURNING id, amount, concept, date, type, user_id, created_at, updated_at
		 )
		 SELECT `+transactionColumns+`
		 FROM t
		 JOIN users u ON u.id = t.user_id`,
		id,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, mapErr("delete transaction", err)
	}
	return tx, nil
}

func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.Transaction, error) {
	result := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapErr("scan transaction", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list transactions", err)
	}
	return result, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		u      domain.User
		amount string
		txType string
		role   string
	)
	if err := row.Scan(
		&tx.ID, &amount, &tx.Concept, &tx.Date, &txType, &tx.UserID, &tx.CreatedAt, &tx.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Amount = parsed
	tx.Type = domain.TransactionType(txType)
	tx.Date = tx.Date.UTC()
	u.Role = domain.Role(role)
	tx.User = &u
	return &tx, nil
}
