package auth

import (
	"encoding/json"
	"testing"
)

func TestTokenDataAcceptsBothCasings(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantAccess  string
		wantRefresh string
	}{
		{"camel", `{"accessToken":"A","refreshToken":"R","user":{"id":"u1"}}`, "A", "R"},
		{"snake", `{"access_token":"A2","refresh_token":"R2"}`, "A2", "R2"},
		{"no refresh", `{"access_token":"A3"}`, "A3", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d TokenData
			if err := json.Unmarshal([]byte(tt.body), &d); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if d.AccessToken != tt.wantAccess {
				t.Errorf("AccessToken = %q, want %q", d.AccessToken, tt.wantAccess)
			}
			if d.RefreshToken != tt.wantRefresh {
				t.Errorf("RefreshToken = %q, want %q", d.RefreshToken, tt.wantRefresh)
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := &Session{AccessToken: "A", User: &User{ID: "u1", DisplayName: "Ada"}}
	snap := s.Snapshot(StatusAuthenticated)
	snap.User.DisplayName = "changed"
	if s.User.DisplayName != "Ada" {
		t.Error("snapshot mutation leaked into the session")
	}
	if !snap.Authenticated() {
		t.Error("expected authenticated snapshot")
	}
	var nilSession *Session
	if nilSession.Snapshot(StatusUnauthenticated).Authenticated() {
		t.Error("nil session must not be authenticated")
	}
}
