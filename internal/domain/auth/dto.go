// internal/domain/auth/dto.go
package auth

import (
	"encoding/json"
	"time"
)

// Credentials for password sign in
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest for account registration
type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

// FederatedRequest exchanges an external identity provider token with the backend.
type FederatedRequest struct {
	Provider string `json:"provider" binding:"required"`
	IDToken  string `json:"idToken" binding:"required"`
}

// RefreshRequest body for POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenData is the data member of every auth endpoint response. The backend is
// inconsistent about key casing so both spellings are accepted.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

func (d *TokenData) UnmarshalJSON(b []byte) error {
	var raw struct {
		AccessToken       string `json:"accessToken"`
		AccessTokenSnake  string `json:"access_token"`
		RefreshToken      string `json:"refreshToken"`
		RefreshTokenSnake string `json:"refresh_token"`
		User              *User  `json:"user"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.AccessToken = firstNonEmpty(raw.AccessToken, raw.AccessTokenSnake)
	d.RefreshToken = firstNonEmpty(raw.RefreshToken, raw.RefreshTokenSnake)
	d.User = raw.User
	return nil
}

// SessionResponse is what the consumer API returns for session reads.
type SessionResponse struct {
	Status    Status     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	User      *User      `json:"user,omitempty"`
}

// NewSessionResponse builds the consumer view of a snapshot.
func NewSessionResponse(s Snapshot) SessionResponse {
	resp := SessionResponse{Status: s.Status, User: s.User}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
