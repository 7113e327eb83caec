// internal/repository/postgres/kv_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"soulchat-agent/internal/pkg/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS client_kv (
	profile    TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (profile, key)
)`

// KVRepository stores the client's persisted keys in a single table, one row per
// (profile, key).
type KVRepository struct {
	db      *pgxpool.Pool
	profile string
}

var _ session.KeyValueStore = (*KVRepository)(nil)

func NewKVRepository(db *pgxpool.Pool, profile string) *KVRepository {
	if profile == "" {
		profile = "default"
	}
	return &KVRepository{db: db, profile: profile}
}

// Migrate creates the backing table if needed.
func (r *KVRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createKVTable); err != nil {
		return fmt.Errorf("failed to create client_kv: %w", err)
	}
	return nil
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM client_kv WHERE profile = $1 AND key = $2`,
		r.profile, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", session.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO client_kv (profile, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		r.profile, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM client_kv WHERE profile = $1 AND key = ANY($2)`,
		r.profile, keys,
	)
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
