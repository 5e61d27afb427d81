package loans

import (
	"errors"
	"strings"
	"time"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/lookupcache"
)

var (
	// ErrNilStore is returned when NewService is called without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrNilCache is returned when a nil cache is provided to WithCache.
	ErrNilCache = errors.New("cache must not be nil")

	// ErrNilClock is returned when a nil clock is provided to WithClock.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrInvalidMaxLoans is returned when the loan cap is not positive.
	ErrInvalidMaxLoans = errors.New("max loans must be positive")

	// ErrEmptyReturnAllToken is returned when the return-all token is blank.
	ErrEmptyReturnAllToken = errors.New("return-all token must not be empty")

	// ErrInvalidNotifyTimeout is returned when the notification timeout is not positive.
	ErrInvalidNotifyTimeout = errors.New("notify timeout must be positive")
)

// Option defines a functional option for configuring Service.
type Option func(*Service) error

// WithCache sets the lookup cache owned by the Service. By default, the Service creates its own.
// The Service is the only writer of the cache; other components should only read it.
func WithCache(cache *lookupcache.Cache) Option {
	return func(s *Service) error {
		if cache == nil {
			return ErrNilCache
		}

		s.cache = cache

		return nil
	}
}

// WithClock sets the clock that provides loan timestamps. Defaults to time.Now.
func WithClock(clock Clock) Option {
	return func(s *Service) error {
		if clock == nil {
			return ErrNilClock
		}

		s.clock = clock

		return nil
	}
}

// WithLabels sets the source of preferred labels that are snapshotted onto new loans.
func WithLabels(labels LabelSource) Option {
	return func(s *Service) error {
		s.labels = labels
		return nil
	}
}

// WithNotifier sets the notifier that tells holders about revoked or removed loans.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) error {
		s.notifier = notifier
		return nil
	}
}

// WithMaxLoans sets the cap of simultaneously active loans per holder. Defaults to ledger.DefaultMaxLoans.
func WithMaxLoans(maxLoans int) Option {
	return func(s *Service) error {
		if maxLoans < 1 {
			return ErrInvalidMaxLoans
		}

		s.maxLoans = maxLoans

		return nil
	}
}

// WithReturnAllToken sets the return-slot category that means "return everything".
// Defaults to DefaultReturnAllToken.
func WithReturnAllToken(token string) Option {
	return func(s *Service) error {
		token = strings.TrimSpace(token)
		if token == "" {
			return ErrEmptyReturnAllToken
		}

		s.allToken = token

		return nil
	}
}

// WithNotifyTimeout bounds each revocation notice delivery. Defaults to 5 seconds.
func WithNotifyTimeout(timeout time.Duration) Option {
	return func(s *Service) error {
		if timeout <= 0 {
			return ErrInvalidNotifyTimeout
		}

		s.notifyTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Service.
// Info level: operation outcomes. Warn level: failed notifications, removed loans, cache resyncs.
// Error level: store failures.
func WithLogger(logger ledger.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Service.
func WithContextualLogger(logger ledger.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Service.
func WithMetrics(collector ledger.MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Service.
func WithTracing(collector ledger.TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}
