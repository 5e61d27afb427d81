package loans

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/guildworks/toolledger/ledger"
)

const (
	// OperationDurationMetric tracks the duration of every Service operation.
	OperationDurationMetric = "loans_operation_duration_seconds"
	// OperationCallsMetric counts Service operations by status.
	OperationCallsMetric = "loans_operation_calls_total"
	// ItemOutcomesMetric counts per-item outcomes of batch operations by reason.
	ItemOutcomesMetric = "loans_item_outcomes_total"
	// CacheSyncMetric counts cache patches and reloads.
	CacheSyncMetric = "loans_cache_sync_total"
	// NotificationsMetric counts revocation notices by status.
	NotificationsMetric = "loans_notifications_total"

	// StatusSuccess indicates successful completion.
	StatusSuccess = "success"
	// StatusError indicates a failure.
	StatusError = "error"

	// OutcomeSucceeded is the item outcome label of a target that was processed.
	OutcomeSucceeded = "succeeded"

	operationRefresh     = "refresh"
	operationAddTool     = "add_tool"
	operationRemoveTool  = "remove_tool"
	operationBorrow      = "borrow"
	operationReturn      = "return"
	operationRevoke      = "revoke"
	operationStatus      = "status"
	operationMyLoans     = "my_loans"
	operationAllLoans    = "all_loans"
	operationAllTools    = "all_tools"
	cacheSyncPatch       = "patch"
	cacheSyncReload      = "reload"
	statusSuccess        = StatusSuccess
	statusError          = StatusError
	spanNamePrefix       = "loans."
	labelOperation       = "operation"
	labelStatus          = "status"
	labelOutcome         = "outcome"
	labelMode            = "mode"
	labelKind            = "kind"
	spanAttrOperationID  = "operation_id"
	spanAttrDurationMS   = "duration_ms"
	spanAttrErrorMessage = "error"

	logMsgOperationStarted   = "loans operation started"
	logMsgOperationCompleted = "loans operation completed"
	logMsgOperationFailed    = "loans operation failed"
	logMsgCacheSyncFailed    = "cache sync failed, cache marked stale"
	logMsgLabelLookupFailed  = "preferred label lookup failed, loan proceeds without label"
	logMsgNotifyFailed       = "revocation notice could not be delivered"
	logMsgRemovedWhileLoaned = "tool removed while on loan"
	logAttrOperation         = "operation"
	logAttrOperationID       = "operation_id"
	logAttrDurationMS        = "duration_ms"
	logAttrError             = "error"
	logAttrHolderID          = "holder_id"
	logAttrTool              = "tool"
	logAttrToolCount         = "tool_count"
	logAttrSucceeded         = "succeeded"
	logAttrFailed            = "failed"
	logAttrWarnings          = "warnings"
	logAttrReason            = "reason"
	logAttrNotified          = "notified"
	logAttrAdded             = "added"
	logAttrRemoved           = "removed"
)

// operationObserver bundles logging, metrics and tracing for one Service operation.
type operationObserver struct {
	s           *Service
	ctx         context.Context
	operation   string
	operationID string
	span        ledger.SpanContext
	start       time.Time
}

func (s *Service) startOperation(ctx context.Context, operation string, attrs ...string) (*operationObserver, context.Context) {
	operationID := newOperationID()

	spanAttrs := map[string]string{
		labelOperation:      operation,
		spanAttrOperationID: operationID,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		spanAttrs[attrs[i]] = attrs[i+1]
	}

	var span ledger.SpanContext
	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)
	}

	s.logDebug(ctx, logMsgOperationStarted, logAttrOperation, operation, logAttrOperationID, operationID)

	return &operationObserver{
		s:           s,
		ctx:         ctx,
		operation:   operation,
		operationID: operationID,
		span:        span,
		start:       time.Now(),
	}, ctx
}

func (o *operationObserver) finishSuccess(args ...any) {
	duration := time.Since(o.start)

	o.s.recordOperation(o.ctx, o.operation, statusSuccess, duration)

	logArgs := []any{
		logAttrOperation, o.operation,
		logAttrOperationID, o.operationID,
		logAttrDurationMS, toMilliseconds(duration),
	}
	logArgs = append(logArgs, args...)
	o.s.logInfo(o.ctx, logMsgOperationCompleted, logArgs...)

	if o.span != nil && o.s.tracingCollector != nil {
		o.span.SetStatus(statusSuccess)
		o.s.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
			spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
		})
	}
}

func (o *operationObserver) finishError(err error) {
	duration := time.Since(o.start)

	o.s.recordOperation(o.ctx, o.operation, statusError, duration)
	o.s.logError(o.ctx, logMsgOperationFailed,
		logAttrOperation, o.operation,
		logAttrOperationID, o.operationID,
		logAttrDurationMS, toMilliseconds(duration),
		logAttrError, err.Error(),
	)

	if o.span != nil && o.s.tracingCollector != nil {
		o.span.SetStatus(statusError)
		o.s.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
			spanAttrErrorMessage: err.Error(),
			spanAttrDurationMS:   fmt.Sprintf("%.2f", toMilliseconds(duration)),
		})
	}
}

// recordOutcome counts one processed item of a batch operation.
func (o *operationObserver) recordOutcome(outcome string) {
	o.s.incrementCounter(o.ctx, ItemOutcomesMetric, map[string]string{
		labelOperation: o.operation,
		labelOutcome:   outcome,
	})
}

func (o *operationObserver) recordBatch(succeeded []ledger.ToolKey, failed []Failure) {
	for range succeeded {
		o.recordOutcome(OutcomeSucceeded)
	}

	for _, failure := range failed {
		o.recordOutcome(failure.Reason.String())
	}
}

func (s *Service) recordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	}

	if contextualCollector, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, OperationDurationMetric, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, OperationCallsMetric, labels)

		return
	}

	s.metricsCollector.RecordDuration(OperationDurationMetric, duration, labels)
	s.metricsCollector.IncrementCounter(OperationCallsMetric, labels)
}

func (s *Service) recordCacheSync(ctx context.Context, mode, status string) {
	s.incrementCounter(ctx, CacheSyncMetric, map[string]string{labelMode: mode, labelStatus: status})
}

func (s *Service) recordNotification(ctx context.Context, kind NoticeKind, status string) {
	s.incrementCounter(ctx, NotificationsMetric, map[string]string{labelKind: string(kind), labelStatus: status})
}

func (s *Service) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

func (s *Service) logDebug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// newOperationID returns a time-ordered id for correlating the logs and spans of one operation.
func newOperationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
