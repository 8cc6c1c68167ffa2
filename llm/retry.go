package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// RetryPolicy bounds how often and how patiently a call is retried
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries three times starting at one second and doubling
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    maxRetries,
	InitialBackoff: initialBackoff,
	MaxBackoff:     maxBackoff,
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. Waits double each time and honour a
// RetryAfter hint when it is longer than the computed backoff.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := policy.InitialBackoff

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := backoff
			var re *RetryableError
			if errors.As(lastErr, &re) && re.RetryAfter > wait {
				wait = re.RetryAfter
			}
			if policy.MaxBackoff > 0 && wait > policy.MaxBackoff {
				wait = policy.MaxBackoff
			}
			if err := sleep(ctx, wait); err != nil {
				return zero, err
			}
			backoff *= 2
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
