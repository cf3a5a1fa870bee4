// Package pipeline contains offline data flows that sit outside the live
// trading engine.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floorarb/floorarb/internal/domain"
)

// ArchiverConfig controls batching of the listing archive stream.
type ArchiverConfig struct {
	// KeyPrefix is prepended to every object key, e.g. "listings".
	KeyPrefix string

	// BatchSize flushes a batch once this many listings accumulate.
	BatchSize int

	// FlushInterval flushes a partial batch after this much idle time.
	FlushInterval time.Duration
}

func (c ArchiverConfig) withDefaults() ArchiverConfig {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "listings"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	return c
}

// archivedListing is the NDJSON row format for one streamed listing.
type archivedListing struct {
	OrderHash    string    `json:"order_hash"`
	ChainID      int64     `json:"chain_id"`
	Collection   string    `json:"collection"`
	TokenID      string    `json:"token_id"`
	PaymentToken string    `json:"payment_token"`
	PriceWei     string    `json:"price_wei"`
	ObservedAt   time.Time `json:"observed_at"`
}

// ListingArchiver batches marketplace listing events into NDJSON objects
// and uploads them to blob storage. It drops block events; only listings
// are archived.
type ListingArchiver struct {
	cfg    ArchiverConfig
	writer domain.BlobWriter
	logger *slog.Logger

	batch []archivedListing
}

// NewListingArchiver creates a ListingArchiver writing through writer.
func NewListingArchiver(cfg ArchiverConfig, writer domain.BlobWriter, logger *slog.Logger) *ListingArchiver {
	return &ListingArchiver{
		cfg:    cfg.withDefaults(),
		writer: writer,
		logger: logger.With(slog.String("component", "listing_archiver")),
	}
}

// Run consumes events until the channel closes or the context is
// cancelled, flushing full batches immediately and partial batches on the
// flush interval. The final partial batch is flushed on shutdown.
func (a *ListingArchiver) Run(ctx context.Context, events <-chan domain.Event) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush(context.WithoutCancel(ctx))
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				a.flush(context.WithoutCancel(ctx))
				return nil
			}
			listing, isListing := ev.(domain.ListingEvent)
			if !isListing {
				continue
			}
			a.append(listing)
			if len(a.batch) >= a.cfg.BatchSize {
				a.flush(ctx)
			}

		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

func (a *ListingArchiver) append(ev domain.ListingEvent) {
	a.batch = append(a.batch, archivedListing{
		OrderHash:    ev.OrderHash,
		ChainID:      ev.ChainID,
		Collection:   ev.Collection.Hex(),
		TokenID:      ev.TokenID.String(),
		PaymentToken: ev.PaymentToken.Hex(),
		PriceWei:     ev.PriceWei.String(),
		ObservedAt:   ev.ObservedAt,
	})
}

// flush uploads the current batch as one NDJSON object. The batch is kept
// on upload failure so the rows retry with the next flush.
func (a *ListingArchiver) flush(ctx context.Context) {
	if len(a.batch) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range a.batch {
		if err := enc.Encode(row); err != nil {
			a.logger.Error("encode listing row", slog.String("error", err.Error()))
			a.batch = a.batch[:0]
			return
		}
	}

	key := a.objectKey(time.Now().UTC())
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		a.logger.Error("archive batch upload failed",
			slog.String("key", key),
			slog.Int("rows", len(a.batch)),
			slog.String("error", err.Error()),
		)
		return
	}

	a.logger.Info("archive batch uploaded",
		slog.String("key", key),
		slog.Int("rows", len(a.batch)),
	)
	a.batch = a.batch[:0]
}

func (a *ListingArchiver) objectKey(now time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.ndjson",
		a.cfg.KeyPrefix, now.Year(), now.Month(), now.Day(), uuid.NewString())
}
