package repository

import (
	"context"
	"encoding/json"

	"finance_tracker/internal/domain"

	"github.com/jackc/pgx/v5"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db PoolProvider
}

func NewAuditRepository(db PoolProvider) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	pool, err := r.db.Pool()
	if err != nil {
		return err
	}

	detailsJSON, err := json.Marshal(log.Details)
	if err != nil || log.Details == nil {
		detailsJSON = []byte("{}")
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO audit_logs (actor_id, action, category, target_id, details, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, log.ActorID, log.Action, log.Category, log.TargetID, detailsJSON, log.IP, log.UserAgent,
	).Scan(&log.ID, &log.CreatedAt)
	return mapErr("create audit log", err)
}

// GetByActor returns the latest entries written by one user
func (r *AuditRepository) GetByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, actor_id, action, category, target_id, details, ip, user_agent, created_at
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, actorID, clampLimit(limit))
	if err != nil {
		return nil, mapErr("list audit logs", err)
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// GetRecent returns the most recent audit logs
func (r *AuditRepository) GetRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	pool, err := r.db.Pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, actor_id, action, category, target_id, details, ip, user_agent, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, mapErr("list audit logs", err)
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var log domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&log.ID, &log.ActorID, &log.Action, &log.Category, &log.TargetID, &detailsJSON, &log.IP, &log.UserAgent, &log.CreatedAt); err != nil {
			return nil, mapErr("scan audit log", err)
		}
		if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
			log.Details = make(map[string]interface{})
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
