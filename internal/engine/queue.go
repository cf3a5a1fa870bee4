package engine

import (
	"context"
	"sync/atomic"

	"github.com/floorarb/floorarb/internal/domain"
)

// OverflowPolicy selects what Emit does when the queue is full.
type OverflowPolicy string

const (
	// OverflowBlock makes Emit block until space is available or the
	// context is cancelled. Collectors absorb the backpressure.
	OverflowBlock OverflowPolicy = "block"

	// OverflowDropOldest makes Emit evict the oldest queued event to make
	// room. Dropped events are counted and observable via Dropped.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
)

// Queue is the bounded multi-producer event queue feeding the engine's
// dispatch loop. Collectors emit into it; the engine is the sole reader.
type Queue struct {
	ch      chan domain.Event
	policy  OverflowPolicy
	dropped atomic.Uint64
}

// NewQueue creates a queue with the given capacity and overflow policy.
func NewQueue(size int, policy OverflowPolicy) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:     make(chan domain.Event, size),
		policy: policy,
	}
}

// Emit appends an event. Under OverflowBlock it blocks until space frees
// up; under OverflowDropOldest it evicts queued events until the send
// succeeds. Emit never blocks indefinitely past context cancellation.
func (q *Queue) Emit(ctx context.Context, ev domain.Event) error {
	if q.policy == OverflowBlock {
		select {
		case q.ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case q.ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Full: evict the oldest event and try again. Another producer may
		// win the freed slot, so loop rather than assume success.
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Events returns the receive side of the queue.
func (q *Queue) Events() <-chan domain.Event { return q.ch }

// Dropped returns the number of events evicted under OverflowDropOldest.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Len returns the number of currently queued events.
func (q *Queue) Len() int { return len(q.ch) }
