package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floorarb/floorarb/internal/collector"
	"github.com/floorarb/floorarb/internal/config"
	"github.com/floorarb/floorarb/internal/engine"
	"github.com/floorarb/floorarb/internal/executor"
	"github.com/floorarb/floorarb/internal/marketplace"
	"github.com/floorarb/floorarb/internal/pipeline"
	"github.com/floorarb/floorarb/internal/strategy"
)

// RunMode starts the live arbitrage pipeline: block and listing
// collectors feeding the engine, the pool-arb strategy, and the
// transaction submitter.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode",
		slog.Int("collections", len(a.cfg.Marketplace.Collections)),
	)

	gasCost, err := config.Wei(a.cfg.Strategy.GasCostWei)
	if err != nil {
		return fmt.Errorf("run mode: %w", err)
	}
	minProfit, err := config.Wei(a.cfg.Strategy.MinProfitWei)
	if err != nil {
		return fmt.Errorf("run mode: %w", err)
	}

	queue := engine.NewQueue(a.cfg.Engine.QueueSize, engine.OverflowPolicy(a.cfg.Engine.OverflowPolicy))
	eng := engine.New(queue, a.cfg.Engine.StrategyBuffer, a.logger)

	arb := strategy.NewPoolArb(strategy.Config{
		ChainID:              a.cfg.Chain.ChainID,
		ArbContract:          common.HexToAddress(a.cfg.Chain.ArbContract),
		FactoryDeployBlock:   a.cfg.Chain.FactoryDeployBlock,
		ChunkSize:            a.cfg.Strategy.ChunkSize,
		QuoteParallelism:     a.cfg.Strategy.QuoteParallelism,
		MaxRetries:           a.cfg.Strategy.MaxRetries,
		RetryBaseDelay:       a.cfg.Strategy.RetryBaseDelay(),
		DeadlineOffsetBlocks: a.cfg.Strategy.DeadlineOffsetBlocks,
		GasCostWei:           gasCost,
		MinProfitWei:         minProfit,
		GasLimit:             a.cfg.Strategy.GasLimit,
	}, deps.Chain, deps.Chain, deps.Marketplace, deps.Deduper, deps.Checkpoints, a.logger)
	eng.AddStrategy(arb)

	submitter := executor.NewTxSubmitter(deps.Chain, deps.Signer, deps.ArbAttempts, deps.Notifier, a.logger)
	if err := eng.AddExecutor(submitter); err != nil {
		return fmt.Errorf("run mode: %w", err)
	}

	eng.AddCollector(collector.NewBlockCollector(deps.Chain, a.logger))
	eng.AddCollector(collector.NewListingCollector(
		a.streamFactory(),
		a.cfg.Marketplace.Collections,
		a.logger,
	))

	return eng.Run(ctx)
}

// ArchiveMode runs only the listing collector and batches the stream into
// NDJSON objects in blob storage. No chain state, no transactions.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.String("bucket", a.cfg.S3.Bucket),
	)

	queue := engine.NewQueue(a.cfg.Engine.QueueSize, engine.OverflowPolicy(a.cfg.Engine.OverflowPolicy))
	listings := collector.NewListingCollector(
		a.streamFactory(),
		a.cfg.Marketplace.Collections,
		a.logger,
	)
	archiver := pipeline.NewListingArchiver(pipeline.ArchiverConfig{
		KeyPrefix:     a.cfg.Archive.Prefix,
		BatchSize:     a.cfg.Archive.BatchSize,
		FlushInterval: a.cfg.Archive.FlushIntervalDuration(),
	}, deps.BlobWriter, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listings.Run(gctx, queue)
	})
	g.Go(func() error {
		return archiver.Run(gctx, queue.Events())
	})
	return g.Wait()
}

func (a *App) streamFactory() collector.StreamFactory {
	wsURL, apiKey := a.cfg.Marketplace.WsURL, a.cfg.Marketplace.ApiKey
	return func() *marketplace.StreamClient {
		return marketplace.NewStreamClient(wsURL, apiKey)
	}
}
