package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryOptions bounds the retry loop around transient store failures.
type RetryOptions struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultRetryOptions returns the standard attempt ceiling and backoff.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
	}
}

// WithRetry runs fn, retrying with exponential backoff and jitter while the
// error stays retryable. Permanent errors return immediately; exhausting the
// ceiling surfaces the last error.
func WithRetry(ctx context.Context, opts RetryOptions, fn func() error) error {
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if attempt == opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
		}
		lastErr = err

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}
