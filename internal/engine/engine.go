// Package engine wires collectors, strategies, and executors into a single
// event-ordered dispatch loop. The engine is the only point of ordering and
// lifecycle control: strategies are synced before any live event reaches
// them, each strategy processes events strictly sequentially, and actions
// are routed to the executor registered for their kind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/floorarb/floorarb/internal/domain"
)

// EventSink is where collectors publish normalized events.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event) error
}

// Collector adapts one external push source into normalized events. Run
// must handle its own source-level failures (reconnect with backoff) and
// only return when the context is cancelled or the source is permanently
// unusable.
type Collector interface {
	Name() string
	Run(ctx context.Context, sink EventSink) error
}

// Strategy is the stateful decision core. SyncState rebuilds its private
// snapshot from history; ProcessEvent maps one event to at most one action.
// The engine guarantees ProcessEvent is never invoked concurrently for the
// same strategy.
type Strategy interface {
	Name() string
	// Emits declares every action kind the strategy may produce, so the
	// engine can verify executor registration before going live.
	Emits() []domain.ActionKind
	SyncState(ctx context.Context) error
	ProcessEvent(ctx context.Context, ev domain.Event) (domain.Action, error)
}

// Executor performs one category of side effect for one action kind.
// Expected business failures are reported as *domain.ExecutionFailure.
type Executor interface {
	Kind() domain.ActionKind
	Execute(ctx context.Context, act domain.Action) error
}

// Engine owns the event queue and the dispatch loop.
type Engine struct {
	queue      *Queue
	collectors []Collector
	strategies []Strategy
	executors  map[domain.ActionKind]Executor
	logger     *slog.Logger

	// strategyBuffer sizes each strategy's private event channel.
	strategyBuffer int
}

// New creates an Engine reading from the given queue.
func New(queue *Queue, strategyBuffer int, logger *slog.Logger) *Engine {
	if strategyBuffer <= 0 {
		strategyBuffer = 64
	}
	return &Engine{
		queue:          queue,
		executors:      make(map[domain.ActionKind]Executor),
		logger:         logger.With(slog.String("component", "engine")),
		strategyBuffer: strategyBuffer,
	}
}

// AddCollector registers a collector.
func (e *Engine) AddCollector(c Collector) { e.collectors = append(e.collectors, c) }

// AddStrategy registers a strategy.
func (e *Engine) AddStrategy(s Strategy) { e.strategies = append(e.strategies, s) }

// AddExecutor registers the executor for its action kind. Registering two
// executors for the same kind is a configuration error.
func (e *Engine) AddExecutor(x Executor) error {
	if _, dup := e.executors[x.Kind()]; dup {
		return fmt.Errorf("engine: duplicate executor for action kind %q", x.Kind())
	}
	e.executors[x.Kind()] = x
	return nil
}

// validate checks that every action kind any strategy may emit has a
// registered executor. Missing executors are a startup error, never a
// runtime surprise.
func (e *Engine) validate() error {
	if len(e.strategies) == 0 {
		return errors.New("engine: no strategies registered")
	}
	for _, s := range e.strategies {
		for _, kind := range s.Emits() {
			if _, ok := e.executors[kind]; !ok {
				return fmt.Errorf("engine: strategy %s emits %q but no executor is registered for it", s.Name(), kind)
			}
		}
	}
	return nil
}

// Run validates the configuration, starts the collectors, syncs every
// strategy, then drains the queue into the live dispatch loop. It blocks
// until the context is cancelled. Strategies whose sync fails are excluded
// from live dispatch; if every strategy fails to sync, Run returns an error.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.validate(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Collectors start before state sync: events produced during the
	// history replay accumulate in the bounded queue (per its overflow
	// policy) instead of being lost, and are drained once sync completes.
	// Blocks the replay already covered are rejected by the strategies as
	// stale. Collectors own their reconnect policy; a collector returning
	// an error is a process-level failure.
	for _, c := range e.collectors {
		col := c
		g.Go(func() error {
			if err := col.Run(gctx, e.queue); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("engine: collector %s: %w", col.Name(), err)
			}
			return gctx.Err()
		})
	}

	g.Go(func() error {
		live, err := e.syncAll(gctx)
		if err != nil {
			return err
		}

		e.logger.Info("engine entering live dispatch",
			slog.Int("strategies", len(live)),
			slog.Int("collectors", len(e.collectors)),
			slog.Int("queued", e.queue.Len()),
		)

		// Per-strategy worker channels. Events are fanned out with blocking
		// sends so per-strategy arrival order is preserved.
		inputs := make([]chan domain.Event, len(live))
		for i, s := range live {
			ch := make(chan domain.Event, e.strategyBuffer)
			inputs[i] = ch
			strat := s
			g.Go(func() error {
				return e.runStrategy(gctx, strat, ch)
			})
		}

		// Dispatch loop: the single reader of the shared queue.
		defer func() {
			for _, ch := range inputs {
				close(ch)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev := <-e.queue.Events():
				for _, ch := range inputs {
					select {
					case ch <- ev:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
		}
	})

	return g.Wait()
}

// syncAll runs SyncState on every registered strategy concurrently and
// returns the ones admitted to live dispatch. Sync failures are fail-closed
// per strategy: better not to trade than to trade on a stale snapshot.
func (e *Engine) syncAll(ctx context.Context) ([]Strategy, error) {
	type result struct {
		strat Strategy
		err   error
	}
	results := make([]result, len(e.strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range e.strategies {
		i, s := i, s
		g.Go(func() error {
			e.logger.Info("syncing strategy state", slog.String("strategy", s.Name()))
			err := s.SyncState(gctx)
			results[i] = result{strat: s, err: err}
			// Individual sync failures do not cancel sibling syncs.
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	live := make([]Strategy, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			failure := &domain.SyncFailure{Strategy: r.strat.Name(), Err: r.err}
			e.logger.Error("strategy excluded from live dispatch",
				slog.String("strategy", r.strat.Name()),
				slog.String("error", failure.Error()),
			)
			continue
		}
		e.logger.Info("strategy synced", slog.String("strategy", r.strat.Name()))
		live = append(live, r.strat)
	}
	if len(live) == 0 {
		return nil, errors.New("engine: no strategy completed state sync")
	}
	return live, nil
}

// runStrategy is one strategy's sequential processing point. Every snapshot
// mutation happens here, which is the correctness guarantee that removes
// the need for locking inside the strategy.
func (e *Engine) runStrategy(ctx context.Context, s Strategy, events <-chan domain.Event) error {
	log := e.logger.With(slog.String("strategy", s.Name()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			act, err := s.ProcessEvent(ctx, ev)
			if err != nil {
				// Per-event failures are contained here; the snapshot is
				// untouched by a failed batch and dispatch continues.
				log.Warn("event processing failed",
					slog.String("event_kind", string(ev.Kind())),
					slog.String("error", err.Error()),
				)
				continue
			}
			if act == nil {
				continue
			}
			e.route(ctx, log, act)
		}
	}
}

// route hands an action to its executor. Executor failures are logged and
// never halt dispatch.
func (e *Engine) route(ctx context.Context, log *slog.Logger, act domain.Action) {
	exec, ok := e.executors[act.Kind()]
	if !ok {
		// validate() makes this unreachable for declared kinds; an
		// undeclared kind is a strategy bug worth loud logging.
		log.Error("no executor for emitted action", slog.String("kind", string(act.Kind())))
		return
	}
	if err := exec.Execute(ctx, act); err != nil {
		var execErr *domain.ExecutionFailure
		if errors.As(err, &execErr) {
			log.Warn("action execution failed",
				slog.String("action_id", execErr.ActionID),
				slog.String("reason", execErr.Reason),
				slog.Bool("retryable", execErr.Retryable),
			)
			return
		}
		log.Error("action execution error",
			slog.String("action_id", act.ActionID()),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("action executed", slog.String("action_id", act.ActionID()), slog.String("kind", string(act.Kind())))
}
