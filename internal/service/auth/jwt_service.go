// Package auth validates bearer tokens and mints them for local development.
// Issuing tokens to end users (login, refresh, logout) is out of scope.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for userID with role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role domain.Role) (string, error)

	// ValidateToken verifies tokenString and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	UserID    uuid.UUID   `json:"uid,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	Subject   string      `json:"sub,omitempty"`
	IssuedAt  time.Time   `json:"iat,omitempty"`
	ExpiresAt time.Time   `json:"exp,omitempty"`
	ID        string      `json:"jti,omitempty"`
}

// Principal returns the caller identity carried by the claims.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{UserID: c.UserID, Role: c.Role}
}
