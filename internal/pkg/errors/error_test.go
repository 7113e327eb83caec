package xerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"bad credentials", fmt.Errorf("sign in: %w", ErrInvalidCredentials), KindAuth},
		{"missing refresh token", ErrNoRefreshToken, KindAuth},
		{"network", Wrap(ErrNetwork, "fetch counts"), KindTransient},
		{"timeout", context.DeadlineExceeded, KindTransient},
		{"socket", ErrConnectionDown, KindRealtime},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Category(tt.err); got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(ErrInvalidInput, "thread id is required")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("errors.Is(%v, ErrInvalidInput) = false", err)
	}
	if got := err.Error(); got != "thread id is required: invalid input" {
		t.Errorf("Error() = %q", got)
	}
	if got := MessageOrDefault(err, "fallback"); got != err.Error() {
		t.Errorf("MessageOrDefault = %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if got := MessageOrDefault(nil, "fallback"); got != "fallback" {
		t.Errorf("MessageOrDefault = %q", got)
	}
}
