package eventhandler

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/errs"
)

// Retries are built into exactly one place in this package: reset_all on
// start, mirroring scaler/retry.go's resource-refresh wrapper.
const (
	resetAttempts          = 10
	resetPerAttemptTimeout = 5 * time.Second
	resetBackoffBase       = 200 * time.Millisecond
)

func withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < resetAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, resetPerAttemptTimeout)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if !errs.Retryable(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * resetBackoffBase):
		}
	}
	return lastErr
}
