package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how a single work item is retried. It is a value object
// so the retry behavior can be tested without real network calls or sleeps.
type RetryPolicy struct {
	MaxAttempts uint
	NewBackOff  func() backoff.BackOff
}

// DefaultRetryPolicy retries transport failures up to 3 attempts with
// exponential backoff starting at 5 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Second

			return b
		},
	}
}

// ImmediateRetryPolicy retries without waiting. Used by tests.
func ImmediateRetryPolicy(maxAttempts uint) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(0)
		},
	}
}

// SleepFunc suspends between work items. Injectable so tests do not pay the
// courtesy delay.
type SleepFunc func(ctx context.Context, d time.Duration)

// SleepWithContext waits for the duration or until the context is done.
func SleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
