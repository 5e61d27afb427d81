package shell

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logAttrTraceID = "trace_id"
	logAttrSpanID  = "span_id"
)

// NewZapLogger builds a production zap.Logger (JSON to stderr) for the given level name,
// e.g. "debug", "info", "warn" or "error".
func NewZapLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// ZapLogger adapts a zap.Logger to ledger.Logger and ledger.ContextualLogger.
// The variadic args are treated as alternating keys and values, like slog does.
// The context variants add the trace and span ids of an active OpenTelemetry span.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLoggerAdapter wraps the given zap.Logger.
func NewZapLoggerAdapter(logger *zap.Logger) ZapLogger {
	return ZapLogger{sugar: logger.Sugar()}
}

// Debug logs at debug level.
func (l ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info logs at info level.
func (l ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn logs at warn level.
func (l ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error logs at error level.
func (l ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// DebugContext logs at debug level with trace correlation.
func (l ZapLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Debugw(msg, withTraceAttrs(ctx, args)...)
}

// InfoContext logs at info level with trace correlation.
func (l ZapLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Infow(msg, withTraceAttrs(ctx, args)...)
}

// WarnContext logs at warn level with trace correlation.
func (l ZapLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Warnw(msg, withTraceAttrs(ctx, args)...)
}

// ErrorContext logs at error level with trace correlation.
func (l ZapLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.sugar.Errorw(msg, withTraceAttrs(ctx, args)...)
}

// Sync flushes buffered log entries.
func (l ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func withTraceAttrs(ctx context.Context, args []any) []any {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return args
	}

	out := make([]any, 0, len(args)+4)
	out = append(out, args...)

	return append(out,
		logAttrTraceID, spanCtx.TraceID().String(),
		logAttrSpanID, spanCtx.SpanID().String(),
	)
}
