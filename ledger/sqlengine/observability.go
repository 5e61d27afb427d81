package sqlengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/guildworks/toolledger/ledger"
)

const (
	metricOperationDuration = "ledger_store_operation_duration_seconds"
	metricDatabaseErrors    = "ledger_store_database_errors_total"
	metricRowsRead          = "ledger_store_rows_read"
	metricWriteNotApplied   = "ledger_store_conditional_write_not_applied_total"
	metricConcurrencyErrors = "ledger_store_concurrency_conflicts_total"

	spanNamePrefix       = "ledger.store."
	spanAttrOperation    = "operation"
	spanAttrCategory     = "tool.category"
	spanAttrName         = "tool.name"
	spanAttrErrorType    = "error_type"
	spanAttrRows         = "rows"
	spanAttrDurationMS   = "duration_ms"
	spanAttrApplied      = "applied"
	spanAttrConsistency  = "consistency"
	labelStatus          = "status"
	statusSuccess        = "success"
	statusError          = "error"
	errorTypeBuildQuery  = "build_query"
	errorTypeQuery       = "query"
	errorTypeScan        = "scan"
	errorTypeExec        = "exec"
	errorTypeConcurrency = "concurrency_conflict"
	errorTypeSchema      = "schema"
)

// operationObserver bundles tracing, metrics and completion logging for one store operation.
type operationObserver struct {
	s         Store
	ctx       context.Context
	operation string
	span      ledger.SpanContext
	start     time.Time
}

// observe starts observing a store operation and returns the context to pass downstream.
func (s Store) observe(ctx context.Context, operation string, key *ledger.ToolKey) (*operationObserver, context.Context) {
	attrs := map[string]string{
		spanAttrOperation:   operation,
		spanAttrConsistency: ledger.GetConsistencyLevel(ctx).String(),
	}

	if key != nil {
		attrs[spanAttrCategory] = key.Category
		attrs[spanAttrName] = key.Name
	}

	var span ledger.SpanContext
	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, attrs)
	}

	return &operationObserver{
		s:         s,
		ctx:       ctx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, ctx
}

// finishSuccess completes the observation of a successful operation.
func (o *operationObserver) finishSuccess(rows int) {
	duration := time.Since(o.start)

	o.s.recordDuration(o.ctx, o.operation, statusSuccess, duration)

	attrs := map[string]string{
		spanAttrRows:       fmt.Sprintf("%d", rows),
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	}

	if o.span != nil {
		o.span.SetStatus(statusSuccess)
		o.span.AddAttribute(spanAttrRows, attrs[spanAttrRows])
	}

	if o.s.tracingCollector != nil && o.span != nil {
		o.s.tracingCollector.FinishSpan(o.span, statusSuccess, attrs)
	}
}

// finishWrite completes the observation of a conditional write.
// A write that did not apply is a regular outcome, not an error.
func (o *operationObserver) finishWrite(applied bool) {
	if !applied {
		o.s.incrementCounter(o.ctx, metricWriteNotApplied, map[string]string{spanAttrOperation: o.operation})
	}

	if o.span != nil {
		o.span.AddAttribute(spanAttrApplied, fmt.Sprintf("%t", applied))
	}

	rows := 0
	if applied {
		rows = 1
	}

	o.finishSuccess(rows)
}

// finishError completes the observation of a failed operation.
func (o *operationObserver) finishError(errorType string) {
	duration := time.Since(o.start)

	o.s.recordDuration(o.ctx, o.operation, statusError, duration)
	o.s.incrementCounter(o.ctx, metricDatabaseErrors, map[string]string{
		spanAttrOperation: o.operation,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	})

	if errorType == errorTypeConcurrency {
		o.s.incrementCounter(o.ctx, metricConcurrencyErrors, map[string]string{spanAttrOperation: o.operation})
	}

	if o.span != nil {
		o.span.SetStatus(statusError)
		o.span.AddAttribute(spanAttrErrorType, errorType)
	}

	if o.s.tracingCollector != nil && o.span != nil {
		o.s.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
			spanAttrErrorType:  errorType,
			spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
		})
	}
}

// recordRowsRead records how many rows a read operation returned.
func (o *operationObserver) recordRowsRead(rows int) {
	o.s.recordValue(o.ctx, metricRowsRead, float64(rows), map[string]string{
		spanAttrOperation: o.operation,
		labelStatus:       statusSuccess,
	})
}

// recordDuration records duration metrics with context if the collector supports it.
func (s Store) recordDuration(ctx context.Context, operation, status string, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
}

// incrementCounter increments a counter with context if the collector supports it.
func (s Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

// recordValue records a value metric with context if the collector supports it.
func (s Store) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metric, value, labels)
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (s Store) logWarn(ctx context.Context, message string, err error) {
	if s.logger != nil {
		s.logger.Warn(message, logAttrError, err.Error())
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, logAttrError, err.Error())
	}
}

// logError logs error information at the error level.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
