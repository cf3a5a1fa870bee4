package strategy

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// blockRange is an inclusive block range.
type blockRange struct {
	from uint64
	to   uint64
}

// splitRange splits [from, to] into ranges of at most size blocks.
func splitRange(from, to uint64, size int) []blockRange {
	if to < from || size <= 0 {
		return nil
	}
	step := uint64(size)
	ranges := make([]blockRange, 0, (to-from)/step+1)
	for start := from; start <= to; {
		end := start + step - 1
		if end > to || end < start {
			end = to
		}
		ranges = append(ranges, blockRange{from: start, to: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return ranges
}

// chunkAddresses splits addrs into chunks of at most size entries.
func chunkAddresses(addrs []common.Address, size int) [][]common.Address {
	if size <= 0 || len(addrs) == 0 {
		return nil
	}
	chunks := make([][]common.Address, 0, len(addrs)/size+1)
	for start := 0; start < len(addrs); start += size {
		end := start + size
		if end > len(addrs) {
			end = len(addrs)
		}
		chunks = append(chunks, addrs[start:end])
	}
	return chunks
}

// withRetry runs fn with exponential backoff, up to maxRetries additional
// attempts after the first failure.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
