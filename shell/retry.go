package shell

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/guildworks/toolledger/ledger"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// Retry metric names.
const (
	RetryAttemptsMetric  = "shell_retry_attempts_total"
	RetryDelayMetric     = "shell_retry_delay_seconds"
	RetryExhaustedMetric = "shell_retry_exhausted_total"
)

const (
	labelOperation     = "operation"
	labelAttemptNumber = "attempt_number"
	labelErrorType     = "error_type"
	errorTypeNone      = "none"
	errorTypeConflict  = "concurrency_conflict"
	errorTypeCanceled  = "context_canceled"
	errorTypeDeadline  = "context_deadline_exceeded"
	errorTypeOther     = "other"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithRetryMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrNilRetryableError is returned when WithRetryableErrors gets a nil error.
	ErrNilRetryableError = errors.New("retryable error must not be nil")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryStats describes how a retried call went.
type RetryStats struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector ledger.MetricsCollector
	operation        string
	retryable        []error
}

// RetryWithExponentialBackoff runs fn until it succeeds, fails with a non-retryable error,
// or maxAttempts is reached.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms (with 30% jitter).
//
// ledger.ErrConcurrencyConflict is always retried. A ledger operation reports it after its own
// compare-and-set attempts were exhausted, so a short backoff usually lets it win the next time.
// Further errors are retried only when opted into with WithRetryableErrors.
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) (RetryStats, error) {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryStats{}, err
		}
	}

	var stats RetryStats
	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // jitter only
			backoffDelay := delay + time.Duration(jitter)

			config.recordDuration(ctx, RetryDelayMetric, backoffDelay, map[string]string{
				labelOperation:     config.operation,
				labelAttemptNumber: strconv.Itoa(attempt),
			})

			timer := time.NewTimer(backoffDelay)
			select {
			case <-timer.C:
				stats.TotalDelay += backoffDelay
			case <-ctx.Done():
				timer.Stop()
				stats.LastErrorType = errorType(ctx.Err())
				return stats, ctx.Err()
			}
		}

		stats.Attempts++

		lastErr = fn(ctx)
		stats.LastErrorType = errorType(lastErr)

		if lastErr == nil {
			return stats, nil
		}

		if !config.isRetryable(lastErr) {
			return stats, lastErr
		}

		if attempt < config.maxAttempts-1 {
			config.incrementCounter(ctx, RetryAttemptsMetric, map[string]string{
				labelOperation:     config.operation,
				labelAttemptNumber: strconv.Itoa(attempt + 1),
				labelErrorType:     stats.LastErrorType,
			})
		}
	}

	config.incrementCounter(ctx, RetryExhaustedMetric, map[string]string{
		labelOperation: config.operation,
		labelErrorType: stats.LastErrorType,
	})

	return stats, lastErr
}

func (c *retryConfig) recordDuration(ctx context.Context, metric string, d time.Duration, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextual, ok := c.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, d, labels)
		return
	}

	c.metricsCollector.RecordDuration(metric, d, labels)
}

func (c *retryConfig) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if c.metricsCollector == nil {
		return
	}

	if contextual, ok := c.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	c.metricsCollector.IncrementCounter(metric, labels)
}

// Context errors are never retried, even when opted into.
func (c *retryConfig) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ledger.ErrConcurrencyConflict) {
		return true
	}

	for _, target := range c.retryable {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func errorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return errorTypeConflict
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	default:
		return errorTypeOther
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryableErrors additionally retries errors matching any of targets via errors.Is,
// e.g. ledger.ErrQueryFailed for a flaky connection.
func WithRetryableErrors(targets ...error) RetryOption {
	return func(config *retryConfig) error {
		for _, target := range targets {
			if target == nil {
				return ErrNilRetryableError
			}
		}

		config.retryable = append(config.retryable, targets...)

		return nil
	}
}

// WithRetryMetrics sets the metrics collector, labelling every metric with the operation name.
func WithRetryMetrics(collector ledger.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
