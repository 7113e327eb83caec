package session

import (
	"context"
	"errors"
	"os"
	"testing"

	"soulchat-agent/internal/db"
)

// Runs against a real Redis when TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := db.NewRedisClient(db.RedisConfig{Address: addr, PoolSize: 2})
	if err != nil {
		t.Fatalf("NewRedisClient() error: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client, "soulchat-test")
	defer store.Delete(ctx, KeyToken, KeyDeviceID)

	if _, err := store.Get(ctx, KeyToken); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}
	if err := store.Set(ctx, KeyToken, "A"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := store.Set(ctx, KeyDeviceID, "dev"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	tokens := NewTokenStore(store)
	if err := tokens.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := store.Get(ctx, KeyToken); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("token survived Clear: %v", err)
	}
	if v, err := store.Get(ctx, KeyDeviceID); err != nil || v != "dev" {
		t.Errorf("device id = %q, %v", v, err)
	}
}
