package xerrors

import (
	"context"
	"errors"
	"fmt"
)

// Common reusable client errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoRefreshToken     = errors.New("no refresh token stored")
	ErrNetwork            = errors.New("network failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConnectionDown     = errors.New("realtime connection is down")
)

// Kind is the handling class an error falls into.
type Kind string

const (
	// KindAuth errors are shown to the user and always end in the unauthenticated state.
	KindAuth Kind = "auth"
	// KindTransient errors are network hiccups; background callers log them and keep
	// last-known state, foreground callers roll back and toast.
	KindTransient Kind = "transient"
	// KindRealtime covers the push connection.
	KindRealtime Kind = "realtime"
	// KindInternal is anything else.
	KindInternal Kind = "internal"
)

// Category maps an error to its handling class.
func Category(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrNoRefreshToken):
		return KindAuth
	case errors.Is(err, ErrConnectionDown):
		return KindRealtime
	case errors.Is(err, ErrNetwork),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindInternal
	}
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
