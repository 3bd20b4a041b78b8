package service

import (
	"errors"
	"testing"

	"finance_tracker/internal/domain"
)

func TestAccessPolicyScope(t *testing.T) {
	admin := &domain.Identity{UserID: "a", Role: domain.RoleAdmin}
	user := &domain.Identity{UserID: "u", Role: domain.RoleUser}
	var p AccessPolicy

	tests := []struct {
		name      string
		id        *domain.Identity
		requested string
		want      Scope
		err       error
	}{
		{"anonymous", nil, "", Scope{}, domain.ErrUnauthenticated},
		{"admin all", admin, "", Scope{All: true}, nil},
		{"admin one", admin, "u", Scope{UserID: "u"}, nil},
		{"user own", user, "", Scope{UserID: "u"}, nil},
		{"user own explicit", user, "u", Scope{UserID: "u"}, nil},
		{"user foreign", user, "a", Scope{}, domain.ErrUnauthorized},
	}
	for _, tt := range tests {
		got, err := p.Scope(tt.id, tt.requested)
		if !errors.Is(err, tt.err) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("%s: scope = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestAccessPolicyChecks(t *testing.T) {
	admin := &domain.Identity{UserID: "a", Role: domain.RoleAdmin}
	user := &domain.Identity{UserID: "u", Role: domain.RoleUser}
	var p AccessPolicy

	if err := p.RequireAdmin(user); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := p.RequireAdmin(nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := p.RequireAdmin(admin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	if !p.CanView(user, "u") || p.CanView(user, "a") || !p.CanView(admin, "u") || p.CanView(nil, "u") {
		t.Fatalf("unexpected CanView results")
	}
	if !(Scope{All: true}).Includes("x") || (Scope{UserID: "u"}).Includes("x") {
		t.Fatalf("unexpected Includes results")
	}
}
