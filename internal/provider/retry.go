package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls WithRetry.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// IsFatal decides which errors end retrying immediately. Nil means !Retriable.
	IsFatal func(error) bool
}

// DefaultRetryPolicy retries transient errors twice, starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Backoff: 500 * time.Millisecond}
}

// WithRetry runs fn, retrying transient errors with exponential backoff.
// Fatal errors are returned after the first attempt. The last error is returned
// when retries run out; ctx cancellation stops waiting between attempts.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	isFatal := policy.IsFatal
	if isFatal == nil {
		isFatal = func(err error) bool { return !Retriable(err) }
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.Backoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	retries := policy.MaxRetries
	if retries < 0 {
		retries = 0
	}

	op := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && isFatal(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying provider call", "error", err, "wait_ms", wait.Milliseconds())
	}

	return backoff.RetryNotifyWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx),
		notify)
}
