package catalog

import (
	"context"
	"time"
)

// RetryOpts configures fetch retries.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
}

// DefaultRetry waits 1s then 2s between three attempts.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
}

// retry calls f up to MaxAttempts times, doubling the wait after each failure.
// It returns the last error, or ctx.Err() if the context ends while waiting.
func retry(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := opts.InitialWait
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = f(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
