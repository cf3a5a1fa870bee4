package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/floorarb/floorarb/internal/domain"
)

// Config holds the pool-arbitrage strategy parameters.
type Config struct {
	ChainID            int64
	ArbContract        common.Address
	FactoryDeployBlock uint64

	// ChunkSize bounds addresses/blocks per RPC round trip during history
	// replay and live quote refresh.
	ChunkSize int

	// QuoteParallelism bounds concurrent quote fetches within one chunk.
	QuoteParallelism int

	MaxRetries     int
	RetryBaseDelay time.Duration

	// DeadlineOffsetBlocks is how far ahead of the current head the
	// transaction deadline is set; a stale transaction self-invalidates.
	DeadlineOffsetBlocks uint64

	// GasCostWei is the estimated round-trip execution cost deducted when
	// computing expected profit.
	GasCostWei   *big.Int
	MinProfitWei *big.Int
	GasLimit     uint64
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 200
	}
	if c.QuoteParallelism <= 0 {
		c.QuoteParallelism = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.DeadlineOffsetBlocks == 0 {
		c.DeadlineOffsetBlocks = 5
	}
	if c.GasCostWei == nil {
		c.GasCostWei = new(big.Int)
	}
	if c.MinProfitWei == nil {
		c.MinProfitWei = new(big.Int)
	}
	if c.GasLimit == 0 {
		c.GasLimit = 600_000
	}
	return c
}

// PoolArb buys newly listed NFTs on the marketplace and resells them into
// the best-quoting pool. Its MarketSnapshot is mutated only on the engine's
// sequential processing point for this strategy, never from the concurrent
// quote-fetch workers.
type PoolArb struct {
	cfg         Config
	chain       ChainReader
	quoter      Quoter
	resolver    OrderResolver
	deduper     domain.ListingDeduper  // optional
	checkpoints domain.CheckpointStore // optional
	logger      *slog.Logger

	snap   *domain.MarketSnapshot
	synced bool
}

// NewPoolArb creates the strategy. deduper and checkpoints may be nil.
func NewPoolArb(cfg Config, chain ChainReader, quoter Quoter, resolver OrderResolver, deduper domain.ListingDeduper, checkpoints domain.CheckpointStore, logger *slog.Logger) *PoolArb {
	return &PoolArb{
		cfg:         cfg.withDefaults(),
		chain:       chain,
		quoter:      quoter,
		resolver:    resolver,
		deduper:     deduper,
		checkpoints: checkpoints,
		logger:      logger.With(slog.String("component", "pool_arb")),
		snap:        domain.NewMarketSnapshot(),
	}
}

// Name implements engine.Strategy.
func (s *PoolArb) Name() string { return "pool_arb" }

// Emits implements engine.Strategy.
func (s *PoolArb) Emits() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindSubmitTransaction}
}

// Snapshot exposes the market snapshot for tests and diagnostics. Callers
// must not mutate it.
func (s *PoolArb) Snapshot() *domain.MarketSnapshot { return s.snap }

// SyncState rebuilds the snapshot from the factory deployment block up to
// the chain head observed at sync start. Blocks produced during the sync
// arrive later as live BlockEvents; the engine admits the strategy only
// after SyncState returns. Exhausting the retry budget fails the sync and
// keeps the strategy out of live dispatch.
func (s *PoolArb) SyncState(ctx context.Context) error {
	start := time.Now()

	var head uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
		var err error
		head, err = s.chain.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("pool_arb: fetch chain head: %w", err)
	}

	var creations []domain.PoolCreation
	for _, r := range splitRange(s.cfg.FactoryDeployBlock, head, s.cfg.ChunkSize) {
		r := r
		err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
			batch, err := s.chain.NewPools(ctx, r.from, r.to)
			if err != nil {
				return err
			}
			creations = append(creations, batch...)
			return nil
		})
		if err != nil {
			return fmt.Errorf("pool_arb: enumerate pools [%d,%d]: %w", r.from, r.to, err)
		}
	}

	addrs := make([]common.Address, 0, len(creations))
	collections := make(map[common.Address]common.Address, len(creations))
	for _, c := range creations {
		// Re-created addresses cannot occur on chain; last write wins keeps
		// re-sync over an unchanged range idempotent.
		if _, dup := collections[c.Address]; !dup {
			addrs = append(addrs, c.Address)
		}
		collections[c.Address] = c.Collection
	}

	quotes, err := s.fetchQuotes(ctx, addrs)
	if err != nil {
		return fmt.Errorf("pool_arb: initial quote fetch: %w", err)
	}

	fresh := domain.NewMarketSnapshot()
	fresh.HeadBlock = head
	for _, addr := range addrs {
		fresh.Pools[addr] = &domain.PoolState{
			Address:         addr,
			Collection:      collections[addr],
			Bid:             quotes[addr],
			LastSyncedBlock: head,
		}
	}
	s.snap = fresh
	s.synced = true
	s.saveCheckpoint(ctx, head)

	s.logger.Info("state sync complete",
		slog.Uint64("head", head),
		slog.Int("pools", len(fresh.Pools)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// ProcessEvent dispatches on the event kind. It returns at most one action
// and never leaves the snapshot partially updated on error.
func (s *PoolArb) ProcessEvent(ctx context.Context, ev domain.Event) (domain.Action, error) {
	if !s.synced {
		return nil, domain.ErrNotSynced
	}
	switch ev := ev.(type) {
	case domain.BlockEvent:
		return nil, s.processNewBlockEvent(ctx, ev)
	case domain.ListingEvent:
		return s.processOrderEvent(ctx, ev)
	default:
		return nil, nil
	}
}

// processNewBlockEvent creates entries for newly deployed pools, refreshes
// quotes for new and touched pools, and advances the snapshot head. All
// staged results are committed only after every fetch succeeded, so a
// failed batch leaves the snapshot untouched.
func (s *PoolArb) processNewBlockEvent(ctx context.Context, ev domain.BlockEvent) error {
	if ev.Number <= s.snap.HeadBlock {
		// Duplicate or reordered delivery from a reconnecting collector.
		s.logger.Debug("ignoring stale block event",
			slog.Uint64("block", ev.Number),
			slog.Uint64("head", s.snap.HeadBlock),
		)
		return nil
	}

	var freshPools []common.Address
	for _, addr := range ev.NewPools {
		if _, known := s.snap.Pools[addr]; !known {
			freshPools = append(freshPools, addr)
		}
	}

	// Stage collections for the new pools.
	collections := make(map[common.Address]common.Address, len(freshPools))
	for _, addr := range freshPools {
		addr := addr
		err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
			collection, err := s.chain.PoolCollection(ctx, addr)
			if err != nil {
				return err
			}
			collections[addr] = collection
			return nil
		})
		if err != nil {
			return fmt.Errorf("pool_arb: block %d: resolve collection %s: %w", ev.Number, addr, err)
		}
	}

	// Refresh targets: new pools plus touched pools we already track.
	targets := make([]common.Address, 0, len(freshPools)+len(ev.TouchedPools))
	targets = append(targets, freshPools...)
	for _, addr := range ev.TouchedPools {
		if _, known := s.snap.Pools[addr]; known && !containsAddress(freshPools, addr) {
			targets = append(targets, addr)
		}
	}

	quotes, err := s.fetchQuotes(ctx, targets)
	if err != nil {
		return fmt.Errorf("pool_arb: block %d: quote refresh: %w", ev.Number, err)
	}

	// Commit point: everything below is infallible.
	for _, addr := range freshPools {
		s.snap.Pools[addr] = &domain.PoolState{
			Address:         addr,
			Collection:      collections[addr],
			Bid:             quotes[addr],
			LastSyncedBlock: ev.Number,
		}
	}
	for _, addr := range targets {
		if containsAddress(freshPools, addr) {
			continue
		}
		pool := s.snap.Pools[addr]
		q := quotes[addr]
		if q == nil {
			// Refreshed quote came back unusable: drop the pool.
			delete(s.snap.Pools, addr)
			continue
		}
		pool.Bid = q
		pool.LastSyncedBlock = ev.Number
	}
	s.snap.HeadBlock = ev.Number
	s.saveCheckpoint(ctx, ev.Number)

	s.logger.Debug("block processed",
		slog.Uint64("block", ev.Number),
		slog.Int("new_pools", len(freshPools)),
		slog.Int("refreshed", len(targets)),
	)
	return nil
}

// processOrderEvent matches a listing against the snapshot and, when the
// best pool quote clears the listing price plus costs, builds the
// arbitrage transaction.
func (s *PoolArb) processOrderEvent(ctx context.Context, ev domain.ListingEvent) (domain.Action, error) {
	if ev.ChainID != s.cfg.ChainID || !ev.IsNativePayment() {
		return nil, nil
	}
	if ev.PriceWei == nil || ev.TokenID == nil {
		return nil, nil
	}

	best := s.selectBestPool(ev.Collection)
	if best == nil {
		return nil, nil
	}

	profit := new(big.Int).Sub(best.Bid.NetWei(), ev.PriceWei)
	profit.Sub(profit, s.cfg.GasCostWei)
	if profit.Sign() <= 0 || profit.Cmp(s.cfg.MinProfitWei) < 0 {
		return nil, nil
	}

	if s.deduper != nil {
		seen, err := s.deduper.Seen(ctx, ev.OrderHash)
		if err != nil {
			// Dedup is best-effort; the executor's own dedup still applies.
			s.logger.Warn("listing dedup check failed", slog.String("error", err.Error()))
		} else if seen {
			s.logger.Debug("listing already attempted", slog.String("order_hash", ev.OrderHash))
			return nil, nil
		}
	}

	act, err := s.buildArbTransaction(ctx, ev, best)
	if err != nil && s.deduper != nil {
		// Release the claim so a redelivered listing is not suppressed for
		// the dedup TTL after a transient resolve failure. Final decisions
		// (unfillable, unprofitable) keep the claim.
		if ferr := s.deduper.Forget(ctx, ev.OrderHash); ferr != nil {
			s.logger.Warn("listing dedup release failed",
				slog.String("order_hash", ev.OrderHash),
				slog.String("error", ferr.Error()),
			)
		}
	}
	return act, err
}

// buildArbTransaction resolves the full order, validates it is still
// fillable, and constructs the arbitrage contract call with a deadline a
// few blocks ahead of the current head.
func (s *PoolArb) buildArbTransaction(ctx context.Context, ev domain.ListingEvent, pool *domain.PoolState) (domain.Action, error) {
	order, err := s.resolver.ResolveOrder(ctx, ev.OrderHash)
	if err != nil {
		return nil, fmt.Errorf("pool_arb: resolve order %s: %w", ev.OrderHash, err)
	}
	if !order.Fillable {
		s.logger.Debug("order no longer fillable", slog.String("order_hash", ev.OrderHash))
		return nil, nil
	}

	// Recheck profitability against the authoritative resolved price; the
	// streamed price may have been approximate or stale.
	profit := new(big.Int).Sub(pool.Bid.NetWei(), order.PriceWei)
	profit.Sub(profit, s.cfg.GasCostWei)
	if profit.Sign() <= 0 || profit.Cmp(s.cfg.MinProfitWei) < 0 {
		return nil, nil
	}

	deadline := s.snap.HeadBlock + s.cfg.DeadlineOffsetBlocks
	data, err := packBuyAndSell(order.FulfillmentData, order.ExchangeAddress, pool.Address, order.TokenID, s.cfg.MinProfitWei, deadline)
	if err != nil {
		return nil, fmt.Errorf("pool_arb: %w", err)
	}

	action := &domain.SubmitTransactionAction{
		ID:                uuid.New().String(),
		To:                s.cfg.ArbContract,
		Data:              data,
		ValueWei:          new(big.Int).Set(order.PriceWei),
		GasLimit:          s.cfg.GasLimit,
		DeadlineBlock:     deadline,
		OrderHash:         ev.OrderHash,
		Pool:              pool.Address,
		Collection:        ev.Collection,
		TokenID:           order.TokenID,
		ListingPriceWei:   new(big.Int).Set(order.PriceWei),
		ExpectedProfitWei: profit,
		CreatedAt:         time.Now().UTC(),
	}
	s.logger.Info("arbitrage opportunity",
		slog.String("order_hash", ev.OrderHash),
		slog.String("pool", pool.Address.Hex()),
		slog.String("profit_wei", profit.String()),
		slog.Uint64("deadline_block", deadline),
	)
	return action, nil
}

// selectBestPool returns the pool with the highest net bid for the
// collection. Pools without a usable quote are never matched. Ties are
// broken by the most recently synced pool: freshest data wins.
func (s *PoolArb) selectBestPool(collection common.Address) *domain.PoolState {
	var best *domain.PoolState
	for _, pool := range s.snap.Pools {
		if pool.Collection != collection || pool.Bid == nil {
			continue
		}
		if best == nil {
			best = pool
			continue
		}
		switch pool.Bid.NetWei().Cmp(best.Bid.NetWei()) {
		case 1:
			best = pool
		case 0:
			if pool.LastSyncedBlock > best.LastSyncedBlock {
				best = pool
			}
		}
	}
	return best
}

// fetchQuotes fetches sell quotes for addrs in chunks, with bounded
// parallelism inside each chunk and the retry budget applied per chunk.
// Results are only returned when every chunk succeeded; callers apply them
// on the sequential processing point.
func (s *PoolArb) fetchQuotes(ctx context.Context, addrs []common.Address) (map[common.Address]*domain.PoolQuote, error) {
	result := make(map[common.Address]*domain.PoolQuote, len(addrs))
	for _, chunk := range chunkAddresses(addrs, s.cfg.ChunkSize) {
		chunk := chunk
		quotes := make([]*domain.PoolQuote, len(chunk))
		err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBaseDelay, func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(s.cfg.QuoteParallelism)
			for i, addr := range chunk {
				i, addr := i, addr
				g.Go(func() error {
					q, err := s.quoter.SellQuote(gctx, addr)
					if err != nil {
						return err
					}
					quotes[i] = q
					return nil
				})
			}
			return g.Wait()
		})
		if err != nil {
			return nil, err
		}
		for i, addr := range chunk {
			result[addr] = quotes[i]
		}
	}
	return result, nil
}

// saveCheckpoint records the applied head block. Best-effort: a failed
// write is logged and never blocks event processing.
func (s *PoolArb) saveCheckpoint(ctx context.Context, block uint64) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.SaveCheckpoint(ctx, s.Name(), block); err != nil {
		s.logger.Warn("checkpoint save failed",
			slog.Uint64("block", block),
			slog.String("error", err.Error()),
		)
	}
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
