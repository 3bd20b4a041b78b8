package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finance_tracker/internal/domain"

	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db PoolProvider
}

func NewUserRepository(db PoolProvider) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id::text, name, email, phone, role, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email),
	))
	if err != nil {
		return nil, mapErr("get user by email", err)
	}
	return u, nil
}

// Create inserts u; ID must already be set.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	pool, err := r.db.Pool()
	if err != nil {
		return err
	}
	err = pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, phone, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Phone, string(u.Role),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr("create user", err)
}

// List returns every user ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name ASC, email ASC`)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	defer rows.Close()

	res := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr("scan user", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list users", err)
	}
	return res, nil
}

// Update applies the non-nil fields of p and returns the stored row.
func (r *UserRepository) Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
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
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Phone != nil {
		if phone := strings.TrimSpace(*p.Phone); phone != "" {
			set("phone", phone)
		} else {
			set("phone", nil)
		}
	}
	if p.Role != nil {
		set("role", string(*p.Role))
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	u, err := scanUser(pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns, strings.Join(sets, ", "), len(args)),
		args...,
	))
	if err != nil {
		return nil, mapErr("update user", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}
