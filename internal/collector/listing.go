package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/floorarb/floorarb/internal/domain"
	"github.com/floorarb/floorarb/internal/engine"
	"github.com/floorarb/floorarb/internal/marketplace"
)

// StreamFactory builds a fresh stream client per connection attempt. A new
// client per attempt keeps reconnect state out of the transport.
type StreamFactory func() *marketplace.StreamClient

// ListingCollector subscribes to the marketplace item_listed stream and
// republishes each listing as a ListingEvent.
type ListingCollector struct {
	newStream   StreamFactory
	collections []string
	logger      *slog.Logger
}

// NewListingCollector creates a listing collector. collections filters the
// subscription; empty means the full firehose.
func NewListingCollector(newStream StreamFactory, collections []string, logger *slog.Logger) *ListingCollector {
	return &ListingCollector{
		newStream:   newStream,
		collections: collections,
		logger:      logger.With(slog.String("component", "listing_collector")),
	}
}

// Name implements engine.Collector.
func (c *ListingCollector) Name() string { return "listings" }

// Run connects and emits until the context is cancelled, reconnecting with
// exponential backoff. Every failure is logged; the collector never retries
// silently.
func (c *ListingCollector) Run(ctx context.Context, sink engine.EventSink) error {
	delay := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.runConnection(ctx, sink)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		delay = nextDelay(delay)
		c.logger.Warn("marketplace stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *ListingCollector) runConnection(ctx context.Context, sink engine.EventSink) error {
	client := c.newStream()
	defer client.Close()

	// The handler runs on the stream's read loop; emitting into the
	// bounded queue is the only work done there.
	emitCtx, cancelEmit := context.WithCancel(ctx)
	defer cancelEmit()

	client.OnListing(func(ev domain.ListingEvent) {
		if err := sink.Emit(emitCtx, ev); err != nil {
			return
		}
		c.logger.Debug("listing event emitted",
			slog.String("order_hash", ev.OrderHash),
			slog.String("collection", ev.Collection.Hex()),
		)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(c.collections); err != nil {
		return err
	}
	c.logger.Info("subscribed to marketplace listings",
		slog.Int("collections", len(c.collections)),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Err():
		return err
	}
}
