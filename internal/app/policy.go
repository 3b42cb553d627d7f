package app

import "bookstore/pkg/domain"

// CanAccess reports whether p may read or modify a resource owned by ownerID.
func CanAccess(p domain.Principal, ownerID uint) bool {
	return p.IsAdmin() || p.UserID == ownerID
}

// ScopeFor is the owner filter applied to list queries: nil (all rows) for admins.
func ScopeFor(p domain.Principal) *uint {
	if p.IsAdmin() {
		return nil
	}
	id := p.UserID
	return &id
}
