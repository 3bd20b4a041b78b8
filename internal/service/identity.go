package service

import (
	"context"
	"errors"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/retry"
)

// IdentityResolver turns a bearer token into the caller identity. The role
// is read from the user table on every call, so a demotion takes effect on
// the next request.
type IdentityResolver struct {
	tokens *TokenService
	users  UserStore
	retry  retry.Policy
}

func NewIdentityResolver(tokens *TokenService, users UserStore, p retry.Policy) *IdentityResolver {
	if p.Retryable == nil {
		p.Retryable = isTransient
	}
	return &IdentityResolver{tokens: tokens, users: users, retry: p}
}

func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	userID, err := r.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if !validID(userID) {
		return nil, domain.ErrUnauthenticated
	}

	u, err := retry.Value(ctx, r.retry, "resolve_identity", func(ctx context.Context) (*domain.User, error) {
		return r.users.GetByID(ctx, userID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, storeFailure("resolve_identity", err)
	}
	return domain.IdentityFromUser(u), nil
}
