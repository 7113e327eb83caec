// internal/pkg/session/types.go
package session

import (
	"context"
	"errors"
)

// Persisted keys. The first four are the durable session snapshot restored at
// start; deviceId outlives sign-out.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyTokenExpiry  = "tokenExpiry"
	KeyUser         = "user"
	KeyDeviceID     = "deviceId"
)

// SessionKeys are the keys cleared on sign-out.
var SessionKeys = []string{KeyToken, KeyRefreshToken, KeyTokenExpiry, KeyUser}

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the persisted key/value storage behind the token store.
type KeyValueStore interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
