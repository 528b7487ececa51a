package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Role is a caller's permission level.
type Role string

// Known roles
const (
	RoleAdmin  Role = "admin"
	RoleAuthor Role = "author"
	RoleReader Role = "reader"
)

// ErrInvalidRole is returned for an unknown role string.
var ErrInvalidRole = errors.New("invalid role")

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuthor, RoleReader:
		return true
	}
	return false
}

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether p has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanWriteArticles reports whether p may create articles.
func (p Principal) CanWriteArticles() bool {
	return p.Role == RoleAdmin || p.Role == RoleAuthor
}

// CanAccess reports whether p may read or modify an article owned by authorID.
// Authors are confined to their own articles.
func (p Principal) CanAccess(authorID uuid.UUID) bool {
	if p.Role == RoleAuthor {
		return authorID == p.UserID
	}
	return p.Role.Valid()
}
