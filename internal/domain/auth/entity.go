// internal/domain/auth/entity.go
package auth

import "time"

// Status is the session state machine: loading -> authenticated | unauthenticated.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// User is the cached profile returned alongside tokens.
type User struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	Email           string `json:"email,omitempty"`
	HasProfile      bool   `json:"hasProfile"`
	HasSoulTest     bool   `json:"hasSoulTest"`
	ProfileComplete bool   `json:"profileComplete"`
}

// Session is the authenticated identity. It is owned by the token manager and
// never handed out by reference; consumers get a Snapshot.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Status      Status    `json:"status"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	User        *User     `json:"user,omitempty"`
}

// Authenticated reports whether the snapshot carries a usable token.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.AccessToken != ""
}

// Snapshot copies the session into a read-only view.
func (s *Session) Snapshot(status Status) Snapshot {
	if s == nil {
		return Snapshot{Status: status}
	}
	snap := Snapshot{
		Status:      status,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
	}
	if s.User != nil {
		u := *s.User
		snap.User = &u
	}
	return snap
}
