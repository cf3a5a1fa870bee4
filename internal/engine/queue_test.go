package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floorarb/floorarb/internal/domain"
)

func blockEv(n uint64) domain.BlockEvent {
	return domain.BlockEvent{Number: n}
}

func TestQueueEmitAndReceiveInOrder(t *testing.T) {
	q := NewQueue(8, OverflowBlock)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, q.Emit(ctx, blockEv(i)))
	}
	require.Equal(t, 3, q.Len())

	for i := uint64(1); i <= 3; i++ {
		ev := <-q.Events()
		require.Equal(t, i, ev.(domain.BlockEvent).Number)
	}
}

func TestQueueBlockPolicyRespectsContext(t *testing.T) {
	q := NewQueue(1, OverflowBlock)
	ctx := context.Background()
	require.NoError(t, q.Emit(ctx, blockEv(1)))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Emit(cancelled, blockEv(2))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, uint64(0), q.Dropped())
}

func TestQueueDropOldestEvicts(t *testing.T) {
	q := NewQueue(2, OverflowDropOldest)
	ctx := context.Background()

	require.NoError(t, q.Emit(ctx, blockEv(1)))
	require.NoError(t, q.Emit(ctx, blockEv(2)))
	require.NoError(t, q.Emit(ctx, blockEv(3)))

	require.Equal(t, uint64(1), q.Dropped())
	require.Equal(t, uint64(2), (<-q.Events()).(domain.BlockEvent).Number)
	require.Equal(t, uint64(3), (<-q.Events()).(domain.BlockEvent).Number)
}
