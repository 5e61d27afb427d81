package shell_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/shell"
	"github.com/guildworks/toolledger/testutil/observability/testdoubles"
)

func Test_RetryWithExponentialBackoff_When_First_Call_Succeeds_It_Does_Not_Retry(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(t.Context(), fn)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, stats.Attempts)
	assert.Equal(t, time.Duration(0), stats.TotalDelay)
	assert.Equal(t, "none", stats.LastErrorType)
}

func Test_RetryWithExponentialBackoff_When_Conflict_Occurs_It_Retries_Until_Success(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return fmt.Errorf("revoking: %w", ledger.ErrConcurrencyConflict)
		}

		return nil
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(t.Context(), fn, shell.WithBaseDelay(time.Millisecond))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, stats.Attempts)
	assert.Greater(t, stats.TotalDelay, time.Duration(0))
}

func Test_RetryWithExponentialBackoff_When_Error_Is_Not_Retryable_It_Fails_Fast(t *testing.T) {
	// arrange
	permanent := errors.New("boom")
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return permanent
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(t.Context(), fn)

	// assert
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "other", stats.LastErrorType)
}

func Test_RetryWithExponentialBackoff_When_Attempts_Are_Exhausted_It_Returns_The_Conflict(t *testing.T) {
	// arrange
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return ledger.ErrConcurrencyConflict
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(
		t.Context(),
		fn,
		shell.WithMaxAttempts(3),
		shell.WithBaseDelay(time.Millisecond),
		shell.WithJitterFactor(0),
		shell.WithRetryMetrics(metrics, "revoke"),
	)

	// assert
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, "concurrency_conflict", stats.LastErrorType)
	assert.Len(t, metrics.Records(testdoubles.KindCounter, shell.RetryAttemptsMetric), 2)
	assert.Len(t, metrics.Records(testdoubles.KindDuration, shell.RetryDelayMetric), 2)
	assert.True(t, metrics.HasRecord(
		testdoubles.KindCounter,
		shell.RetryExhaustedMetric,
		map[string]string{"operation": "revoke", "error_type": "concurrency_conflict"},
	))
}

func Test_RetryWithExponentialBackoff_When_Context_Is_Canceled_It_Stops_Waiting(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(t.Context())
	fn := func(_ context.Context) error {
		cancel()
		return ledger.ErrConcurrencyConflict
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(ctx, fn, shell.WithBaseDelay(time.Hour))

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Attempts)
	assert.Equal(t, "context_canceled", stats.LastErrorType)
}

func Test_RetryWithExponentialBackoff_When_Error_Is_Opted_Into_It_Retries(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		if callCount < 2 {
			return errors.Join(ledger.ErrQueryFailed, errors.New("connection reset"))
		}

		return nil
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(t.Context(), fn,
		shell.WithBaseDelay(time.Millisecond),
		shell.WithRetryableErrors(ledger.ErrQueryFailed),
	)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.Attempts)
}

func Test_RetryWithExponentialBackoff_Never_Retries_Context_Errors_Even_When_Opted_Into(t *testing.T) {
	// arrange
	callCount := 0
	fn := func(_ context.Context) error {
		callCount++
		return fmt.Errorf("query: %w", context.DeadlineExceeded)
	}

	// act
	stats, err := shell.RetryWithExponentialBackoff(t.Context(), fn, shell.WithRetryableErrors(context.DeadlineExceeded))

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "context_deadline_exceeded", stats.LastErrorType)
}

func Test_RetryWithExponentialBackoff_When_An_Option_Is_Invalid_It_Returns_The_Option_Error(t *testing.T) {
	fn := func(_ context.Context) error { return nil }

	testCases := []struct {
		name    string
		option  shell.RetryOption
		wantErr error
	}{
		{name: "zero attempts", option: shell.WithMaxAttempts(0), wantErr: shell.ErrInvalidMaxAttempts},
		{name: "negative delay", option: shell.WithBaseDelay(-time.Millisecond), wantErr: shell.ErrNegativeBaseDelay},
		{name: "jitter above one", option: shell.WithJitterFactor(1.5), wantErr: shell.ErrInvalidJitterFactor},
		{name: "nil retryable error", option: shell.WithRetryableErrors(ledger.ErrQueryFailed, nil), wantErr: shell.ErrNilRetryableError},
		{name: "nil collector", option: shell.WithRetryMetrics(nil, "revoke"), wantErr: shell.ErrNilMetricsCollector},
		{name: "empty operation", option: shell.WithRetryMetrics(testdoubles.NewMetricsCollectorSpy(false), ""), wantErr: shell.ErrEmptyOperation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := shell.RetryWithExponentialBackoff(t.Context(), fn, tc.option)

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
