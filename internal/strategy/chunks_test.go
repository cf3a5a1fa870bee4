package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	require.Equal(t, []blockRange{
		{from: 0, to: 199},
		{from: 200, to: 399},
		{from: 400, to: 450},
	}, splitRange(0, 450, 200))

	require.Equal(t, []blockRange{{from: 10, to: 10}}, splitRange(10, 10, 200))
	require.Equal(t, []blockRange{{from: 0, to: 199}}, splitRange(0, 199, 200))
	require.Nil(t, splitRange(5, 4, 200))
	require.Nil(t, splitRange(0, 10, 0))
}

func TestChunkAddresses(t *testing.T) {
	addrs := make([]common.Address, 5)
	for i := range addrs {
		addrs[i] = common.BigToAddress(common.Big1)
	}

	chunks := chunkAddresses(addrs, 2)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 2)
	require.Len(t, chunks[2], 1)

	require.Nil(t, chunkAddresses(nil, 2))
	require.Nil(t, chunkAddresses(addrs, 0))
}

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := withRetry(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, attempts)
}

func TestWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 10, time.Hour, func(ctx context.Context) error {
		return errors.New("always")
	})
	require.Error(t, err)
}
