package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorarb/floorarb/internal/domain"
)

// ArbAttemptStore implements domain.ArbAttemptStore using PostgreSQL.
type ArbAttemptStore struct {
	pool *pgxpool.Pool
}

// NewArbAttemptStore creates a new ArbAttemptStore.
func NewArbAttemptStore(pool *pgxpool.Pool) *ArbAttemptStore {
	return &ArbAttemptStore{pool: pool}
}

// Create inserts one arbitrage attempt record.
func (s *ArbAttemptStore) Create(ctx context.Context, attempt domain.ArbAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO arb_attempts (id, order_hash, pool, collection, token_id, listing_price_wei, expected_profit_wei, deadline_block, tx_hash, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		attempt.ID, attempt.OrderHash,
		attempt.Pool.Hex(), attempt.Collection.Hex(), attempt.TokenID,
		attempt.ListingPriceWei, attempt.ExpectedProfitWei, attempt.DeadlineBlock,
		attempt.TxHash, string(attempt.Status), attempt.Detail, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb_attempt: %w", err)
	}
	return nil
}

// SetStatus updates the lifecycle status of an attempt.
func (s *ArbAttemptStore) SetStatus(ctx context.Context, id string, status domain.ArbAttemptStatus, detail string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE arb_attempts SET status = $2, detail = $3 WHERE id = $1`,
		id, string(status), detail,
	)
	if err != nil {
		return fmt.Errorf("postgres: update arb_attempt %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns a single attempt.
func (s *ArbAttemptStore) GetByID(ctx context.Context, id string) (domain.ArbAttempt, error) {
	var (
		attempt          domain.ArbAttempt
		pool, collection string
		status           string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_hash, pool, collection, token_id, listing_price_wei, expected_profit_wei, deadline_block, tx_hash, status, detail, created_at
		FROM arb_attempts WHERE id = $1`,
		id,
	).Scan(&attempt.ID, &attempt.OrderHash, &pool, &collection, &attempt.TokenID,
		&attempt.ListingPriceWei, &attempt.ExpectedProfitWei, &attempt.DeadlineBlock,
		&attempt.TxHash, &status, &attempt.Detail, &attempt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbAttempt{}, domain.ErrNotFound
		}
		return domain.ArbAttempt{}, fmt.Errorf("postgres: get arb_attempt %s: %w", id, err)
	}
	attempt.Pool = common.HexToAddress(pool)
	attempt.Collection = common.HexToAddress(collection)
	attempt.Status = domain.ArbAttemptStatus(status)
	return attempt, nil
}

// ListRecent returns the most recent attempts, newest first.
func (s *ArbAttemptStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_hash, pool, collection, token_id, listing_price_wei, expected_profit_wei, deadline_block, tx_hash, status, detail, created_at
		FROM arb_attempts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arb_attempts: %w", err)
	}
	defer rows.Close()

	var list []domain.ArbAttempt
	for rows.Next() {
		var (
			attempt          domain.ArbAttempt
			pool, collection string
			status           string
		)
		if err := rows.Scan(&attempt.ID, &attempt.OrderHash, &pool, &collection, &attempt.TokenID,
			&attempt.ListingPriceWei, &attempt.ExpectedProfitWei, &attempt.DeadlineBlock,
			&attempt.TxHash, &status, &attempt.Detail, &attempt.CreatedAt); err != nil {
			return nil, err
		}
		attempt.Pool = common.HexToAddress(pool)
		attempt.Collection = common.HexToAddress(collection)
		attempt.Status = domain.ArbAttemptStatus(status)
		list = append(list, attempt)
	}
	return list, rows.Err()
}
