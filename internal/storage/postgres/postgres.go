package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/quarry/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (b *postgresBackend) Set(ctx context.Context, key string, value []byte) error {
	query := `
	INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := b.pool.Exec(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (b *postgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	return nil
}

func (b *postgresBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT key FROM kv_store WHERE left(key, char_length($1)) = $1 ORDER BY key ASC`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres keys: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres keys: %w", err)
	}
	return keys, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
