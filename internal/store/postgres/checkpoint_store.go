package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorarb/floorarb/internal/domain"
)

// CheckpointStore implements domain.CheckpointStore using PostgreSQL. One
// row per strategy, upserted on every save.
type CheckpointStore struct {
	pool *pgxpool.Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ domain.CheckpointStore = (*CheckpointStore)(nil)

// SaveCheckpoint records the highest block the strategy has fully applied.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, strategy string, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_checkpoints (strategy, block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (strategy) DO UPDATE SET block = EXCLUDED.block, updated_at = now()`,
		strategy, block,
	)
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint %s: %w", strategy, err)
	}
	return nil
}

// LastCheckpoint returns the most recently saved block for the strategy.
func (s *CheckpointStore) LastCheckpoint(ctx context.Context, strategy string) (uint64, error) {
	var block uint64
	err := s.pool.QueryRow(ctx, `
		SELECT block FROM sync_checkpoints WHERE strategy = $1`, strategy,
	).Scan(&block)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: last checkpoint %s: %w", strategy, err)
	}
	return block, nil
}
