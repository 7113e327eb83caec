// internal/pkg/jwt/claims.go
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access token claims the client cares about. The
// client never holds the signing key, so claims are read without verification
// and must only be used as hints.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Inspect decodes the claims of a token without checking its signature.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// ExpiryFromToken returns the exp claim of a JWT access token. ok is false for
// opaque tokens or tokens without exp.
func ExpiryFromToken(token string) (time.Time, bool) {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Subject returns the user id carried by the token, preferring userId over sub.
func Subject(token string) string {
	claims, err := Inspect(token)
	if err != nil {
		return ""
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}
