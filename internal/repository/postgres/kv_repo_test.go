package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"soulchat-agent/internal/pkg/session"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func TestKVRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer pool.Close()

	repo := NewKVRepository(pool, "kv-test")
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	defer repo.Delete(ctx, "token", "user")

	if _, err := repo.Get(ctx, "token"); !errors.Is(err, session.ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if err := repo.Set(ctx, "token", "A"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := repo.Set(ctx, "token", "B"); err != nil {
		t.Fatalf("Set(overwrite) error: %v", err)
	}
	if v, err := repo.Get(ctx, "token"); err != nil || v != "B" {
		t.Errorf("Get() = %q, %v", v, err)
	}

	other := NewKVRepository(pool, "kv-test-other")
	if _, err := other.Get(ctx, "token"); !errors.Is(err, session.ErrKeyNotFound) {
		t.Errorf("profiles must not share keys: %v", err)
	}

	if err := repo.Delete(ctx, "token", "user"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.Get(ctx, "token"); !errors.Is(err, session.ErrKeyNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
}
