package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/platform/logger"
)

// jwtClaims is the wire shape of the claims the platform issues.
type jwtClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// hmacVerifier validates HMAC-SHA256 signed tokens against a shared secret.
type hmacVerifier struct {
	signingKey []byte
	clockSkew  time.Duration
	timeFunc   func() time.Time
}

// Ensure hmacVerifier implements TokenVerifier interface
var _ TokenVerifier = (*hmacVerifier)(nil)

// NewHMACVerifier creates a TokenVerifier for HMAC-SHA256 signed tokens.
// The secret must match the issuing platform's signing key.
func NewHMACVerifier(secret string) (TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &hmacVerifier{
		signingKey: []byte(secret),
		// Allow minor clock drift between the issuer and this service.
		clockSkew: 2 * time.Minute,
		timeFunc:  time.Now,
	}, nil
}

// VerifyToken implements TokenVerifier.VerifyToken.
func (v *hmacVerifier) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithTimeFunc(v.timeFunc),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed", "error", err.Error())
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == uuid.Nil {
		// Fall back to the subject claim for tokens without a uid field.
		parsed, parseErr := uuid.Parse(claims.Subject)
		if parseErr != nil {
			return nil, ErrInvalidToken
		}
		userID = parsed
	}

	out := &Claims{
		UserID:  userID,
		Subject: claims.Subject,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
