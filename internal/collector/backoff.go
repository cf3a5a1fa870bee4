package collector

import (
	"context"
	"time"
)

const (
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 60 * time.Second
)

// nextDelay doubles the delay up to the cap.
func nextDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return baseReconnectDelay
	}
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
