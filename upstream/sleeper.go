package upstream

import (
	"context"
	"time"
)

// Sleeper abstracts time-based waiting between retry attempts so backoff
// behavior can be verified in tests without real delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses actual time.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
