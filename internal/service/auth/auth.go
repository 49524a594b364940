// Package auth verifies the bearer tokens the surrounding platform issues.
// This service never mints tokens; identity lives upstream, and the review
// engine only needs to know which user a request belongs to.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common authentication errors.
var (
	// ErrInvalidToken indicates the token format is invalid or the
	// signature does not match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token's nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken indicates a token was expected but not provided.
	ErrMissingToken = errors.New("authentication token is missing")
)

// Claims carries the verified identity extracted from a token.
type Claims struct {
	UserID    uuid.UUID
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens and extracts their claims.
type TokenVerifier interface {
	// VerifyToken validates the token string and returns its claims, or
	// ErrInvalidToken / ErrExpiredToken / ErrTokenNotYetValid.
	VerifyToken(ctx context.Context, tokenString string) (*Claims, error)
}
