package service

import "finance_tracker/internal/domain"

// Scope is the set of ledger rows a caller may see.
type Scope struct {
	// UserID restricts the scope to one owner when All is false.
	UserID string
	All    bool
}

// Includes reports whether rows owned by ownerID fall inside the scope.
func (s Scope) Includes(ownerID string) bool {
	return s.All || s.UserID == ownerID
}

// Query turns the scope into a store query; an all-users scope leaves the
// owner unconstrained.
func (s Scope) Query() domain.TransactionQuery {
	if s.All {
		return domain.TransactionQuery{}
	}
	return domain.TransactionQuery{UserID: s.UserID}
}

// AccessPolicy decides visibility from the caller's role. It does no I/O.
type AccessPolicy struct{}

// Scope resolves the rows visible to id, optionally narrowed to
// requestedUserID. A USER asking for anyone else's rows is refused rather
// than silently narrowed to their own.
func (AccessPolicy) Scope(id *domain.Identity, requestedUserID string) (Scope, error) {
	if id == nil {
		return Scope{}, domain.ErrUnauthenticated
	}

	if id.IsAdmin() {
		if requestedUserID != "" {
			return Scope{UserID: requestedUserID}, nil
		}
		return Scope{All: true}, nil
	}

	if requestedUserID != "" && requestedUserID != id.UserID {
		return Scope{}, domain.ErrUnauthorized
	}
	return Scope{UserID: id.UserID}, nil
}

// RequireAdmin rejects anyone who is not an authenticated ADMIN.
func (AccessPolicy) RequireAdmin(id *domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	if !id.IsAdmin() {
		return domain.ErrUnauthorized
	}
	return nil
}

// RequireIdentity rejects anonymous callers.
func (AccessPolicy) RequireIdentity(id *domain.Identity) error {
	if id == nil {
		return domain.ErrUnauthenticated
	}
	return nil
}

// CanView reports whether id may read a record owned by ownerID.
func (AccessPolicy) CanView(id *domain.Identity, ownerID string) bool {
	if id == nil {
		return false
	}
	return id.IsAdmin() || id.UserID == ownerID
}
