package domain

import (
	"context"
	"io"
	"time"
)

// ArbAttemptStore persists submitted arbitrage attempts.
type ArbAttemptStore interface {
	Create(ctx context.Context, attempt ArbAttempt) error
	SetStatus(ctx context.Context, id string, status ArbAttemptStatus, detail string) error
}

// ListingDeduper remembers order hashes the engine has already acted on, so
// a reconnecting marketplace stream cannot re-trigger the same arbitrage.
type ListingDeduper interface {
	// Seen atomically records key and reports whether it was already present.
	Seen(ctx context.Context, key string) (bool, error)
	// Forget releases a key recorded by Seen, so a redelivery can retry
	// after a transient failure instead of waiting out the TTL.
	Forget(ctx context.Context, key string) error
}

// CheckpointStore records how far a strategy has synced. Checkpoints are
// observability records; they do not shortcut the next state sync.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, strategy string, block uint64) error
}

// RateLimiter throttles calls to an external resource identified by key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
