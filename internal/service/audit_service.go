package service

import (
	"context"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
)

// AuditStore persists audit entries.
type AuditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	GetByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error)
	GetRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

type requestInfoKey struct{}

// RequestInfo is the client address and agent recorded with an audit entry.
type RequestInfo struct {
	IP        string
	UserAgent string
}

func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfo(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// AuditService handles audit logging
type AuditService struct {
	repo AuditStore
}

func NewAuditService(repo AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// LogAdminAction writes an audit entry. A failed insert is logged and the
// caller's operation is not affected.
func (s *AuditService) LogAdminAction(ctx context.Context, actor *domain.Identity, action, category, targetID string, details map[string]interface{}) {
	info := requestInfo(ctx)
	entry := &domain.AuditLog{
		Action:    action,
		Category:  category,
		TargetID:  targetID,
		Details:   details,
		IP:        info.IP,
		UserAgent: info.UserAgent,
	}
	if actor != nil {
		entry.ActorID = actor.UserID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.WithContext(ctx).Error("failed to create audit log", "error", err, "action", action, "actor_id", entry.ActorID)
	}
}

// ActorLogs returns the latest entries written by actorID.
func (s *AuditService) ActorLogs(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByActor(ctx, actorID, limit)
}

// RecentLogs returns the latest entries across all actors.
func (s *AuditService) RecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetRecent(ctx, limit)
}
