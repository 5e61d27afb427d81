package main

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/guildworks/toolledger/holderlabels"
	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/ledger/oteladapters"
	"github.com/guildworks/toolledger/ledger/promadapters"
	"github.com/guildworks/toolledger/ledger/sqlengine"
	"github.com/guildworks/toolledger/loans"
	"github.com/guildworks/toolledger/shell"
	"github.com/guildworks/toolledger/shell/config"
)

const instrumentationName = "github.com/guildworks/toolledger"

// app is one wired ledger: store, label store and service, plus the shared collectors.
type app struct {
	service  *loans.Service
	labels   *holderlabels.Store
	metrics  *promadapters.MetricsCollector
	logger   *zap.Logger
	location *time.Location
	out      io.Writer
	closers  []func()
}

func openApp(ctx context.Context, opts *cliOptions, out io.Writer) (*app, error) {
	cfg := opts.cfg

	a := &app{
		metrics: promadapters.NewMetricsCollector(nil),
		logger:  opts.logger,
		out:     out,
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a.location = location

	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}

	zapAdapter := shell.NewZapLoggerAdapter(opts.logger)
	tracing := oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))

	var contextual ledger.ContextualLogger = zapAdapter
	if opts.otelLogs {
		contextual = oteladapters.NewSlogBridgeLogger(instrumentationName)
	}

	store, closeStore, err := config.OpenStore(ctx, cfg,
		sqlengine.WithLogger(zapAdapter),
		sqlengine.WithContextualLogger(contextual),
		sqlengine.WithMetrics(a.metrics),
		sqlengine.WithTracing(tracing),
	)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, closeStore)

	labels, err := holderlabels.Open(cfg.LabelsPath)
	if err != nil {
		a.close()
		return nil, err
	}

	a.labels = labels
	a.closers = append(a.closers, func() { _ = labels.Close() })

	service, err := loans.NewService(store,
		loans.WithClock(clock),
		loans.WithLabels(labels),
		loans.WithNotifier(logNotifier{logger: zapAdapter}),
		loans.WithMaxLoans(cfg.MaxLoans),
		loans.WithReturnAllToken(cfg.ReturnAllToken),
		loans.WithNotifyTimeout(cfg.NotifyTimeout),
		loans.WithLogger(zapAdapter),
		loans.WithContextualLogger(contextual),
		loans.WithMetrics(a.metrics),
		loans.WithTracing(tracing),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	if err := service.Start(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.service = service

	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, opts *cliOptions, out io.Writer, fn func(a *app) error) error {
	a, err := openApp(ctx, opts, out)
	if err != nil {
		return err
	}

	defer a.close()

	return fn(a)
}

// retried runs fn with the shell retry policy, recording retry metrics under operation.
// Failed reads are retried too; revoke and remove both re-read before they write.
func (a *app) retried(ctx context.Context, operation string, fn shell.RetryableFunc) error {
	stats, err := shell.RetryWithExponentialBackoff(ctx, fn,
		shell.WithRetryMetrics(a.metrics, operation),
		shell.WithRetryableErrors(ledger.ErrQueryFailed),
	)
	if stats.Attempts > 1 {
		a.logger.Info("operation retried",
			zap.String("operation", operation),
			zap.Int("attempts", stats.Attempts),
			zap.Duration("total_delay", stats.TotalDelay),
			zap.String("last_error_type", stats.LastErrorType),
		)
	}

	return err
}

// logNotifier stands in for a chat integration: it records revocation notices in the log.
type logNotifier struct {
	logger shell.ZapLogger
}

func (n logNotifier) NotifyRevoked(ctx context.Context, notice loans.RevocationNotice) error {
	n.logger.InfoContext(ctx, "holder notified",
		"kind", string(notice.Kind),
		"tool", notice.Key.String(),
		"holder_id", notice.Loan.HolderID,
		"revoked_at", notice.RevokedAt.Format(time.RFC3339),
	)

	return nil
}
