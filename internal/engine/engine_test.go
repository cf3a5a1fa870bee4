package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floorarb/floorarb/internal/domain"
	"github.com/floorarb/floorarb/internal/testutil"
)

type fakeAction struct {
	id string
}

func (a *fakeAction) Kind() domain.ActionKind { return domain.ActionKindSubmitTransaction }
func (a *fakeAction) ActionID() string        { return a.id }

// recordingStrategy records processed events and can emit an action or
// fail on selected block numbers.
type recordingStrategy struct {
	name      string
	syncErr   error
	syncDelay time.Duration
	failOn    uint64 // block number whose processing fails, 0 disables
	emitOn    uint64 // block number that yields an action, 0 disables

	mu        sync.Mutex
	processed []uint64
	syncDone  time.Time
	notify    chan struct{}
}

func newRecordingStrategy(name string) *recordingStrategy {
	return &recordingStrategy{name: name, notify: make(chan struct{}, 64)}
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Emits() []domain.ActionKind {
	return []domain.ActionKind{domain.ActionKindSubmitTransaction}
}

func (s *recordingStrategy) SyncState(ctx context.Context) error {
	if s.syncDelay > 0 {
		select {
		case <-time.After(s.syncDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.syncDone = time.Now()
	s.mu.Unlock()
	return s.syncErr
}

func (s *recordingStrategy) syncReturned() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncDone
}

func (s *recordingStrategy) ProcessEvent(ctx context.Context, ev domain.Event) (domain.Action, error) {
	block, ok := ev.(domain.BlockEvent)
	if !ok {
		return nil, nil
	}
	s.mu.Lock()
	s.processed = append(s.processed, block.Number)
	s.mu.Unlock()
	s.notify <- struct{}{}

	if s.failOn != 0 && block.Number == s.failOn {
		return nil, errors.New("processing failed")
	}
	if s.emitOn != 0 && block.Number == s.emitOn {
		return &fakeAction{id: "act-1"}, nil
	}
	return nil, nil
}

func (s *recordingStrategy) seen() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.processed))
	copy(out, s.processed)
	return out
}

func (s *recordingStrategy) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d", i+1, n)
		}
	}
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	err      error
}

func (x *recordingExecutor) Kind() domain.ActionKind { return domain.ActionKindSubmitTransaction }

func (x *recordingExecutor) Execute(ctx context.Context, act domain.Action) error {
	x.mu.Lock()
	x.executed = append(x.executed, act.ActionID())
	x.mu.Unlock()
	return x.err
}

func (x *recordingExecutor) ids() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]string, len(x.executed))
	copy(out, x.executed)
	return out
}

// emittingCollector pushes its scripted events then waits for shutdown.
type emittingCollector struct {
	events []domain.Event

	mu      sync.Mutex
	started time.Time
}

func (c *emittingCollector) Name() string { return "scripted" }

func (c *emittingCollector) Run(ctx context.Context, sink EventSink) error {
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()
	for _, ev := range c.events {
		if err := sink.Emit(ctx, ev); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *emittingCollector) startedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(NewQueue(64, OverflowBlock), 8, testutil.Logger())
}

func TestRunRequiresStrategy(t *testing.T) {
	eng := newTestEngine(t)
	require.Error(t, eng.Run(context.Background()))
}

func TestRunRequiresExecutorForEmittedKind(t *testing.T) {
	eng := newTestEngine(t)
	eng.AddStrategy(newRecordingStrategy("s1"))

	err := eng.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no executor")
}

func TestAddExecutorRejectsDuplicateKind(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))
	require.Error(t, eng.AddExecutor(&recordingExecutor{}))
}

func TestEventsDispatchedInOrder(t *testing.T) {
	eng := newTestEngine(t)
	strat := newRecordingStrategy("s1")
	eng.AddStrategy(strat)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))

	events := []domain.Event{blockEv(1), blockEv(2), blockEv(3), blockEv(4)}
	eng.AddCollector(&emittingCollector{events: events})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	strat.waitFor(t, 4)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, []uint64{1, 2, 3, 4}, strat.seen())
}

func TestCollectorsStartBeforeSyncCompletes(t *testing.T) {
	eng := newTestEngine(t)
	strat := newRecordingStrategy("s1")
	strat.syncDelay = 200 * time.Millisecond
	eng.AddStrategy(strat)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))
	col := &emittingCollector{events: []domain.Event{blockEv(1)}}
	eng.AddCollector(col)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	strat.waitFor(t, 1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// The collector must be running while the history replay is still in
	// flight, so heads produced in that window buffer in the queue instead
	// of being lost, and the buffered event is dispatched after sync.
	require.True(t, col.startedAt().Before(strat.syncReturned()),
		"collector started after sync returned")
	require.Equal(t, []uint64{1}, strat.seen())
}

func TestSyncFailureExcludesStrategy(t *testing.T) {
	eng := newTestEngine(t)
	healthy := newRecordingStrategy("healthy")
	broken := newRecordingStrategy("broken")
	broken.syncErr = errors.New("history replay failed")
	eng.AddStrategy(healthy)
	eng.AddStrategy(broken)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))
	eng.AddCollector(&emittingCollector{events: []domain.Event{blockEv(1)}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	healthy.waitFor(t, 1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Empty(t, broken.seen())
}

func TestAllStrategiesFailingSyncAbortsRun(t *testing.T) {
	eng := newTestEngine(t)
	broken := newRecordingStrategy("broken")
	broken.syncErr = errors.New("history replay failed")
	eng.AddStrategy(broken)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))

	err := eng.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no strategy completed state sync")
}

func TestActionsRoutedToExecutor(t *testing.T) {
	eng := newTestEngine(t)
	strat := newRecordingStrategy("s1")
	strat.emitOn = 2
	exec := &recordingExecutor{}
	eng.AddStrategy(strat)
	require.NoError(t, eng.AddExecutor(exec))
	eng.AddCollector(&emittingCollector{events: []domain.Event{blockEv(1), blockEv(2)}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	strat.waitFor(t, 2)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, []string{"act-1"}, exec.ids())
}

func TestProcessingFailureDoesNotStopDispatch(t *testing.T) {
	eng := newTestEngine(t)
	strat := newRecordingStrategy("s1")
	strat.failOn = 2
	eng.AddStrategy(strat)
	require.NoError(t, eng.AddExecutor(&recordingExecutor{}))
	eng.AddCollector(&emittingCollector{events: []domain.Event{blockEv(1), blockEv(2), blockEv(3)}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	strat.waitFor(t, 3)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, []uint64{1, 2, 3}, strat.seen())
}

func TestExecutionFailureIsContained(t *testing.T) {
	eng := newTestEngine(t)
	strat := newRecordingStrategy("s1")
	strat.emitOn = 1
	exec := &recordingExecutor{err: &domain.ExecutionFailure{ActionID: "act-1", Reason: "nonce too low", Retryable: true}}
	eng.AddStrategy(strat)
	require.NoError(t, eng.AddExecutor(exec))
	eng.AddCollector(&emittingCollector{events: []domain.Event{blockEv(1), blockEv(2)}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	strat.waitFor(t, 2)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, []string{"act-1"}, exec.ids())
}
