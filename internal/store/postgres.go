package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore persists entities in a single JSONB table. Upserts use
// ON CONFLICT so replays of the same event stream are idempotent writes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "entity_store").Logger(),
	}
}

func (s *PostgresStore) Get(ctx context.Context, kind, id string, out any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM entities WHERE kind = $1 AND id = $2`, kind, id).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s *PostgresStore) Put(ctx context.Context, kind, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()`,
		kind, id, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM entities WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	return nil
}
