package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresBackend implements Backend on a single key-value table. It relies
// on upserts for writes and filters expired rows on read; Purge physically
// removes them.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend creates a backend over an open database handle and
// ensures the backing table exists.
func NewPostgresBackend(db *sql.DB) (*PostgresBackend, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_records (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create kv_records table: %w", err)
	}

	return &PostgresBackend{db: db}, nil
}

// Get returns the value for key, treating expired rows as absent.
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT value FROM kv_records
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`

	var value []byte
	err := b.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}

	return value, true, nil
}

// Set upserts the value, translating a zero ttl into a NULL expiry.
func (b *PostgresBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO kv_records (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	if _, err := b.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes key if present.
func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Keys enumerates live keys with the given prefix.
func (b *PostgresBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT key FROM kv_records
		WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())
	`

	rows, err := b.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", ErrUnavailable, prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan key: %v", ErrUnavailable, err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Purge physically deletes expired rows and returns how many were removed.
func (b *PostgresBackend) Purge(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM kv_records WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

var _ Backend = (*PostgresBackend)(nil)
