package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	retry := NewRetry(RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, permanent) },
	})

	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustionWrapsBothErrors(t *testing.T) {
	cause := errors.New("still failing")
	retry := NewRetry(RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	})

	err := retry.Execute(context.Background(), func() error { return cause })

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, cause)
}

func TestRetry_OnRetryCallbackFires(t *testing.T) {
	var retries int
	retry := NewRetry(RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(attempt int, err error, wait time.Duration) { retries++ },
	})

	_ = retry.Execute(context.Background(), func() error { return errors.New("x") })

	// 3 tentativi, 2 attese intermedie
	assert.Equal(t, 2, retries)
}

// hintedError simula un errore con Retry-After del vendor
type hintedError struct{ hint time.Duration }

func (e *hintedError) Error() string            { return "rate limited" }
func (e *hintedError) WaitHint() time.Duration  { return e.hint }

func TestRetry_WaitHintOverridesBackoff(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	})

	var observedWait time.Duration
	retry.config.OnRetry = func(attempt int, err error, wait time.Duration) { observedWait = wait }

	start := time.Now()
	calls := 0
	err := retry.Execute(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &hintedError{hint: 1100 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1100*time.Millisecond, observedWait)
	assert.GreaterOrEqual(t, time.Since(start), 1100*time.Millisecond)
}

func TestRetry_WaitHintFloorIsOneSecond(t *testing.T) {
	retry := NewRetry(RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond})

	wait := retry.waitFor(&hintedError{hint: 10 * time.Millisecond}, 0)
	assert.Equal(t, time.Second, wait)
}

func TestRetry_ContextCancellationStopsWaiting(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := retry.Execute(ctx, func() error { return errors.New("x") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_BackoffGrowsExponentially(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2.0,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0, // deterministico per il test
	})

	assert.Equal(t, 500*time.Millisecond, retry.calculateBackoff(0))
	assert.Equal(t, time.Second, retry.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, retry.calculateBackoff(2))
	// Cap al massimo
	assert.Equal(t, 10*time.Second, retry.calculateBackoff(10))
}

func TestRetry_JitterStaysWithinFraction(t *testing.T) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	})

	for i := 0; i < 100; i++ {
		backoff := retry.calculateBackoff(0)
		assert.GreaterOrEqual(t, backoff, 750*time.Millisecond)
		assert.LessOrEqual(t, backoff, 1250*time.Millisecond)
	}
}
