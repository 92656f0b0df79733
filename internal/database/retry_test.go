package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryOptions() RetryOptions {
	return RetryOptions{MaxRetries: 3, InitialBackoff: time.Millisecond}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryOptions(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryOptions(), func() error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("boom")
	calls := 0
	err := WithRetry(context.Background(), fastRetryOptions(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsCeiling(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetryOptions(), func() error {
		calls++
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial attempt plus three retries
	assert.Contains(t, err.Error(), "max retries (3) exceeded")

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, fastRetryOptions(), func() error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
