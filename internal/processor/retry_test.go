package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
)

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	attempts, err := processor.Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return domain.ErrInvalidResponse
	})

	require.ErrorIs(t, err, domain.ErrInvalidResponse)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_MaxAttemptsWrapsLastError(t *testing.T) {
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	attempts, err := processor.Retry(context.Background(), cfg, transportErr)

	require.ErrorIs(t, err, processor.ErrMaxAttemptsExceeded)
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := processor.RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}
	cfg.OnRetry = func(int, error) { cancel() }

	_, err := processor.Retry(ctx, cfg, transportErr)
	require.ErrorIs(t, err, processor.ErrContextCancelled)
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := processor.NewRateLimiter(0, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for range 100 {
		require.NoError(t, rl.Wait(ctx))
	}
}

func TestRateLimiter_Limited(t *testing.T) {
	rl := processor.NewRateLimiter(1, 1, nil)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}
