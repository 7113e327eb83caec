package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"soulchat-agent/internal/domain/auth"

	"github.com/google/uuid"
)

// TokenStore is the single writer of persisted credentials. Readers go through
// it on every use instead of caching tokens across async boundaries.
type TokenStore struct {
	kv KeyValueStore
}

func NewTokenStore(kv KeyValueStore) *TokenStore {
	return &TokenStore{kv: kv}
}

// Load returns the persisted session, or nil when no access token is stored.
// A corrupt expiry or user entry is dropped rather than failing the load.
func (s *TokenStore) Load(ctx context.Context) (*auth.Session, error) {
	token, err := s.get(ctx, KeyToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	sess := &auth.Session{AccessToken: token}
	if sess.RefreshToken, err = s.get(ctx, KeyRefreshToken); err != nil {
		return nil, err
	}

	expiry, err := s.get(ctx, KeyTokenExpiry)
	if err != nil {
		return nil, err
	}
	if expiry != "" {
		if t, perr := time.Parse(time.RFC3339Nano, expiry); perr == nil {
			sess.ExpiresAt = t
		}
	}

	rawUser, err := s.get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	if rawUser != "" {
		var u auth.User
		if json.Unmarshal([]byte(rawUser), &u) == nil {
			sess.User = &u
		}
	}
	return sess, nil
}

// Save persists the session. An empty refresh token keeps the stored one, and a
// nil user keeps the cached user.
func (s *TokenStore) Save(ctx context.Context, sess *auth.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return errors.New("refusing to persist a session without access token")
	}
	if err := s.kv.Set(ctx, KeyToken, sess.AccessToken); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if sess.RefreshToken != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, sess.RefreshToken); err != nil {
			return fmt.Errorf("failed to persist refresh token: %w", err)
		}
	}
	if err := s.kv.Set(ctx, KeyTokenExpiry, sess.ExpiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to persist token expiry: %w", err)
	}
	if sess.User != nil {
		data, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		if err := s.kv.Set(ctx, KeyUser, string(data)); err != nil {
			return fmt.Errorf("failed to persist user: %w", err)
		}
	}
	return nil
}

// AccessToken reads the current access token; empty when signed out.
func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

// RefreshToken reads the current refresh token; empty when absent.
func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// Clear removes every session key. The device id is kept.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, SessionKeys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// DeviceID returns the install id, creating and persisting one on first use.
func (s *TokenStore) DeviceID(ctx context.Context) (string, error) {
	id, err := s.get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.kv.Set(ctx, KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

func (s *TokenStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}
