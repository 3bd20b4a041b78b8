package service

import (
	"context"
	"errors"
	"testing"

	"finance_tracker/internal/domain"
)

func TestRoleCheck(t *testing.T) {
	f := newFixture(true)
	tests := []struct {
		id   *domain.Identity
		want RoleStatus
	}{
		{nil, RoleStatus{}},
		{f.user, RoleStatus{Authenticated: true}},
		{f.admin, RoleStatus{Authenticated: true, IsAdmin: true}},
	}
	for _, tt := range tests {
		if got := f.svc.RoleCheck(tt.id); got != tt.want {
			t.Fatalf("RoleCheck(%v) = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestMe(t *testing.T) {
	f := newFixture(true)
	u, err := f.svc.Me(context.Background(), f.user)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if u.Email != "user@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := f.svc.Me(context.Background(), nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	f := newFixture(true)
	if _, err := f.svc.ListUsers(context.Background(), f.user); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	users, err := f.svc.ListUsers(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 3 || users[0].Name != "Admin" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	role := domain.Role("admin")
	phone := " +1 555 0100 "

	u, err := f.svc.UpdateUser(ctx, f.admin, f.user.UserID, domain.UserPatch{Role: &role, Phone: &phone})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if u.Role != domain.RoleAdmin || u.Phone == nil || *u.Phone != "+1 555 0100" {
		t.Fatalf("unexpected user %+v", u)
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != domain.AuditActionUserUpdate {
		t.Fatalf("unexpected audit %v", f.audit.actions)
	}

	empty := " "
	bad := domain.Role("OWNER")
	cases := []domain.UserPatch{{Name: &empty}, {Role: &bad}}
	for _, p := range cases {
		if _, err := f.svc.UpdateUser(ctx, f.admin, f.user.UserID, p); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("patch %+v: expected ErrValidation, got %v", p, err)
		}
	}

	if _, err := f.svc.UpdateUser(ctx, f.admin, "00000000-0000-0000-0000-000000000000", domain.UserPatch{Role: &role}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateUser(ctx, f.user, f.other.UserID, domain.UserPatch{Role: &role}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	existing, err := f.svc.EnsureUser(ctx, "USER@example.com", "")
	if err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if existing.ID != f.user.UserID {
		t.Fatalf("expected existing user, got %+v", existing)
	}

	created, err := f.svc.EnsureUser(ctx, "boss.admin@corp.test", "")
	if err != nil {
		t.Fatalf("ensure new: %v", err)
	}
	if created.Role != domain.RoleAdmin || created.Name != "boss.admin" {
		t.Fatalf("unexpected created user %+v", created)
	}

	if _, err := f.svc.EnsureUser(ctx, "nobody", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
