package embedder

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retryPolicy bounds retries of transient provider failures.
type retryPolicy struct {
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
}

// defaultRetryPolicy is the backoff schedule shared by the API providers:
// up to 3 attempts, 100ms initial delay doubling to a 5s cap.
func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		attempts:   3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   5 * time.Second,
		multiplier: 2.0,
	}
}

// retryWithBackoff executes fn under the policy, logging every failed
// attempt that is followed by a retry so retries are observable. Retry stops
// immediately on context cancellation; once attempts are exhausted the last
// error is returned without a further log entry.
func retryWithBackoff[T any](ctx context.Context, policy retryPolicy, logger *zap.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	backoff := policy.baseDelay

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= policy.attempts {
			return zero, err
		}

		logger.Warn("retrying after provider failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * policy.multiplier)
		if backoff > policy.maxDelay {
			backoff = policy.maxDelay
		}
	}
}
