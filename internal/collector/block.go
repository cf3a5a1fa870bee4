// Package collector adapts external push sources (chain heads, marketplace
// listings) into the engine's event vocabulary. Source-level failures are
// recoverable: collectors resubscribe with capped exponential backoff and
// never crash the process for a single disconnect.
package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floorarb/floorarb/internal/domain"
	"github.com/floorarb/floorarb/internal/engine"
)

// HeadSource is the chain access the block collector needs.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	PoolActivity(ctx context.Context, from, to uint64) (created, touched []common.Address, err error)
}

// BlockCollector subscribes to new chain heads and publishes one BlockEvent
// per observed head, annotated with the factory deployments and pool
// interactions found in the logs since the last successfully scanned block.
type BlockCollector struct {
	source HeadSource
	logger *slog.Logger

	// nextScan is the lowest block whose logs have not been scanned yet,
	// zero until the first head arrives. It advances only after a
	// successful scan, so a failed scan or a reconnect gap is re-covered
	// by the next head instead of being silently skipped. Only touched by
	// the Run loop.
	nextScan uint64
}

// NewBlockCollector creates a block collector over the given head source.
func NewBlockCollector(source HeadSource, logger *slog.Logger) *BlockCollector {
	return &BlockCollector{
		source: source,
		logger: logger.With(slog.String("component", "block_collector")),
	}
}

// Name implements engine.Collector.
func (c *BlockCollector) Name() string { return "block" }

// Run subscribes and emits until the context is cancelled, resubscribing
// with exponential backoff on subscription failures.
func (c *BlockCollector) Run(ctx context.Context, sink engine.EventSink) error {
	delay := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.runSubscription(ctx, sink)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		delay = nextDelay(delay)
		c.logger.Warn("head subscription lost, resubscribing",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *BlockCollector) runSubscription(ctx context.Context, sink engine.EventSink) error {
	heads := make(chan *types.Header, 16)
	sub, err := c.source.SubscribeNewHead(ctx, heads)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	c.logger.Info("subscribed to new heads")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case head := <-heads:
			if head == nil {
				continue
			}
			number := head.Number.Uint64()
			from := c.nextScan
			if from == 0 || from > number {
				from = number
			}
			created, touched, err := c.source.PoolActivity(ctx, from, number)
			if err != nil {
				// Skip emission rather than advance past an unscanned
				// block: a pool created in it would be lost for good. The
				// next head rescans from the same lower bound.
				c.logger.Warn("pool activity scan failed",
					slog.Uint64("from", from),
					slog.Uint64("to", number),
					slog.String("error", err.Error()),
				)
				continue
			}
			c.nextScan = number + 1

			ev := domain.BlockEvent{
				Number:       number,
				NewPools:     created,
				TouchedPools: touched,
				ObservedAt:   time.Now().UTC(),
			}
			if err := sink.Emit(ctx, ev); err != nil {
				return err
			}
			c.logger.Debug("block event emitted",
				slog.Uint64("block", number),
				slog.Int("new_pools", len(created)),
				slog.Int("touched_pools", len(touched)),
			)
		}
	}
}
