package scaler

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/errs"
)

// refreshAttempts and refreshPerAttemptTimeout bound the node
// resource-refresh retry at the start of a tick. The
// backoff-after-transient-failure pattern is a plain loop since this call
// isn't an AWS SDK operation aws/retry's Retryer can wrap.
const (
	refreshAttempts          = 10
	refreshPerAttemptTimeout = 5 * time.Second
	refreshBackoffBase       = 100 * time.Millisecond
)

// withRetry calls fn up to refreshAttempts times, each bounded by
// refreshPerAttemptTimeout, backing off linearly between attempts. An
// exhausted budget returns the last error, which the caller treats as an
// Unavailable/Internal failure scoped to the current tick only.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < refreshAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, refreshPerAttemptTimeout)
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
		case <-time.After(time.Duration(attempt+1) * refreshBackoffBase):
		}
	}
	return lastErr
}
