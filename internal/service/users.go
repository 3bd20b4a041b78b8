package service

import (
	"context"
	"errors"
	"strings"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/repository"
	"finance_tracker/internal/retry"

	"github.com/google/uuid"
)

// RoleStatus answers the role check endpoint.
type RoleStatus struct {
	Authenticated bool `json:"authenticated"`
	IsAdmin       bool `json:"isAdmin"`
}

// Me returns the caller's stored profile.
func (s *LedgerService) Me(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	if err := s.policy.RequireIdentity(id); err != nil {
		return nil, err
	}
	u, err := retry.Value(ctx, s.retry, "get_user", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByID(ctx, id.UserID)
	})
	if err != nil {
		return nil, storeFailure("get_user", err)
	}
	return u, nil
}

func (s *LedgerService) RoleCheck(id *domain.Identity) RoleStatus {
	return RoleStatus{Authenticated: id != nil, IsAdmin: id.IsAdmin()}
}

// ListUsers returns every user by name. ADMIN only.
func (s *LedgerService) ListUsers(ctx context.Context, id *domain.Identity) ([]*domain.User, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	users, err := retry.Value(ctx, s.retry, "list_users", func(ctx context.Context) ([]*domain.User, error) {
		return s.users.List(ctx)
	})
	if err != nil {
		return nil, storeFailure("list_users", err)
	}
	return users, nil
}

// UpdateUser edits name, phone or role of a user. ADMIN only.
func (s *LedgerService) UpdateUser(ctx context.Context, id *domain.Identity, userID string, patch domain.UserPatch) (*domain.User, error) {
	if err := s.policy.RequireAdmin(id); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return nil, domain.ErrNotFound
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Invalid("name", "must not be empty")
		}
		patch.Name = &name
	}
	if patch.Role != nil {
		role := domain.Role(strings.ToUpper(string(*patch.Role)))
		if !role.Valid() {
			return nil, domain.Invalid("role", "must be USER or ADMIN")
		}
		patch.Role = &role
	}
	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		patch.Phone = &phone
	}

	if patch.Empty() {
		u, err := retry.Value(ctx, s.retry, "get_user", func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByID(ctx, userID)
		})
		if err != nil {
			return nil, storeFailure("get_user", err)
		}
		return u, nil
	}

	u, err := retry.Value(ctx, s.retry, "update_user", func(ctx context.Context) (*domain.User, error) {
		return s.users.Update(ctx, userID, patch)
	})
	if err != nil {
		return nil, storeFailure("update_user", err)
	}

	details := make(map[string]interface{})
	if patch.Name != nil {
		details["name"] = *patch.Name
	}
	if patch.Phone != nil {
		details["phone"] = *patch.Phone
	}
	if patch.Role != nil {
		details["role"] = string(*patch.Role)
	}
	s.record(ctx, id, domain.AuditActionUserUpdate, domain.AuditCategoryUser, u.ID, details)
	return u, nil
}

// EnsureUser finds the user by email or creates it with the role derived
// from the address. Used by the development login.
func (s *LedgerService) EnsureUser(ctx context.Context, email, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "must be an email address")
	}

	u, err := retry.Value(ctx, s.retry, "get_user_by_email", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByEmail(ctx, email)
	})
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, storeFailure("get_user_by_email", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DisplayNameForEmail(email)
	}
	u = &domain.User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Role:  domain.RoleForEmail(email),
	}

	err = s.retry.Do(ctx, "create_user", func(ctx context.Context) error {
		return s.users.Create(ctx, u)
	})
	if errors.Is(err, repository.ErrConflict) {
		// lost a race with a concurrent login for the same address
		existing, gerr := s.users.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, storeFailure("get_user_by_email", gerr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, storeFailure("create_user", err)
	}

	s.record(ctx, domain.IdentityFromUser(u), domain.AuditActionLogin, domain.AuditCategoryAuth, u.ID, map[string]interface{}{
		"created": true,
		"role":    string(u.Role),
	})
	return u, nil
}
