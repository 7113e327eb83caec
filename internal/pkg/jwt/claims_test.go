package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	return s
}

func TestExpiryFromToken(t *testing.T) {
	exp := time.Now().Add(90 * time.Minute).Truncate(time.Second)
	token := signed(t, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})

	got, ok := ExpiryFromToken(token)
	if !ok {
		t.Fatal("expected expiry to be found")
	}
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
	if sub := Subject(token); sub != "u1" {
		t.Errorf("Subject() = %q", sub)
	}
}

func TestExpiryFromOpaqueToken(t *testing.T) {
	if _, ok := ExpiryFromToken("opaque-token"); ok {
		t.Error("opaque token should not yield an expiry")
	}
	token := signed(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "s1"}})
	if _, ok := ExpiryFromToken(token); ok {
		t.Error("token without exp should not yield an expiry")
	}
	if sub := Subject(token); sub != "s1" {
		t.Errorf("Subject() = %q", sub)
	}
}
