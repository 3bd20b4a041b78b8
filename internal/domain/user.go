package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// UserPatch holds the admin-editable user fields.
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Role == nil
}

// RoleForEmail is the role assigned when an account is first created.
func RoleForEmail(email string) Role {
	if strings.Contains(strings.ToLower(email), "admin@") {
		return RoleAdmin
	}
	return RoleUser
}

// DisplayNameForEmail is used when the identity provider sends no name.
func DisplayNameForEmail(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "User"
}
