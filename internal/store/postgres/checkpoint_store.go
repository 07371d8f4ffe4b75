package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// CheckpointStore implements domain.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *pgxpool.Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Get returns the persisted sequence for the named consumer, or
// domain.ErrNotFound when the consumer has never checkpointed.
func (s *CheckpointStore) Get(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx,
		`SELECT seq FROM indexer_checkpoints WHERE name = $1`, name).Scan(&seq)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: get checkpoint %s: %w", name, err)
	}
	return seq, nil
}

// Set persists the last-processed sequence for the named consumer.
func (s *CheckpointStore) Set(ctx context.Context, name string, seq int64) error {
	const query = `
		INSERT INTO indexer_checkpoints (name, seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			seq        = EXCLUDED.seq,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, name, seq); err != nil {
		return fmt.Errorf("postgres: set checkpoint %s: %w", name, err)
	}
	return nil
}

var _ domain.CheckpointStore = (*CheckpointStore)(nil)
