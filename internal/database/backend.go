package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresBackend keeps every collection as one JSONB array in the
// collections table. Updates lock the row and retry on serialization
// failures, so concurrent writers to a collection are applied in turn.
type PostgresBackend struct {
	db   *sql.DB
	opts TxOptions
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{
		db: db,
		opts: TxOptions{
			IsolationLevel: sql.LevelSerializable,
			MaxRetries:     5,
		},
	}
}

func (b *PostgresBackend) Read(ctx context.Context, collection string) ([]byte, error) {
	var body []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT body FROM collections WHERE name = $1`,
		collection).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	return body, nil
}

func (b *PostgresBackend) Update(ctx context.Context, collection string, fn func([]byte) ([]byte, error)) error {
	return WithRetry(ctx, b.db, b.opts, func(tx *sql.Tx) error {
		var body []byte
		err := tx.QueryRowContext(ctx,
			`SELECT body FROM collections WHERE name = $1 FOR UPDATE`,
			collection).Scan(&body)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock collection %s: %w", collection, err)
		}

		next, err := fn(body)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO collections (name, body, version, updated_at)
			 VALUES ($1, $2::jsonb, 1, NOW())
			 ON CONFLICT (name) DO UPDATE
			 SET body = EXCLUDED.body,
			     version = collections.version + 1,
			     updated_at = NOW()`,
			collection, string(next))
		if err != nil {
			return fmt.Errorf("write collection %s: %w", collection, err)
		}
		return nil
	})
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
