package domain

// Identity is the authenticated caller, with the role as currently stored.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// IdentityFromUser builds the caller identity from a stored user row.
func IdentityFromUser(u *User) *Identity {
	return &Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
	}
}
