// Package policy holds the authorization rules. Every rule is a pure
// predicate over the requesting user; the anonymous user never passes a rule
// that requires authentication.
package policy

import "github.com/hafizmfadli/go-review/internal/data"

func authenticated(u *data.User) bool {
	return u != nil && !u.IsAnonymous()
}

// CanWriteCatalog reports whether u may create, change or delete categories,
// genres and titles. Catalog reads are public.
func CanWriteCatalog(u *data.User) bool {
	return authenticated(u) && u.Role == data.RoleAdmin
}

// CanCreateContent reports whether u may post reviews and comments.
func CanCreateContent(u *data.User) bool {
	return authenticated(u)
}

// CanModifyContent reports whether u may edit or delete a review or comment
// written by authorID.
func CanModifyContent(u *data.User, authorID int64) bool {
	if !authenticated(u) {
		return false
	}
	switch u.Role {
	case data.RoleAdmin, data.RoleModerator:
		return true
	default:
		return u.ID == authorID
	}
}

// CanManageUsers reports whether u may list, create, change and delete
// arbitrary user accounts.
func CanManageUsers(u *data.User) bool {
	return authenticated(u) && u.Role == data.RoleAdmin
}
