package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/floorarb/floorarb/internal/domain"
)

// ListingDeduper implements domain.ListingDeduper with SET NX and a TTL,
// so a reconnecting marketplace stream cannot re-trigger the same order.
type ListingDeduper struct {
	client *Client
	ttl    time.Duration
}

// NewListingDeduper creates a deduper whose entries expire after ttl.
func NewListingDeduper(c *Client, ttl time.Duration) *ListingDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ListingDeduper{client: c, ttl: ttl}
}

func dedupKey(key string) string {
	return "listing:seen:" + key
}

// Seen atomically records key and reports whether it was already present.
func (d *ListingDeduper) Seen(ctx context.Context, key string) (bool, error) {
	created, err := d.client.Underlying().SetNX(ctx, dedupKey(key), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: listing dedup %s: %w", key, err)
	}
	return !created, nil
}

// Forget drops the key so a redelivered listing can be retried. Used when
// acting on the listing failed transiently after the key was claimed.
func (d *ListingDeduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Underlying().Del(ctx, dedupKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: listing dedup forget %s: %w", key, err)
	}
	return nil
}

var _ domain.ListingDeduper = (*ListingDeduper)(nil)
