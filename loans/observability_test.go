package loans_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/loans"
	. "github.com/guildworks/toolledger/testutil/helper"
	"github.com/guildworks/toolledger/testutil/observability/testdoubles"
)

func Test_Service_With_Metrics_Records_Operations_And_Item_Outcomes(t *testing.T) {
	// arrange
	ctx := t.Context()
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	f := givenService(t, loans.WithMetrics(metrics))
	free, missing := FixtureKey(t, "A", "1"), FixtureKey(t, "A", "Ghost")
	givenToolsInService(t, f.svc, free)

	// act
	_, err := f.svc.Borrow(ctx, loans.BorrowRequest{Holder: FixtureHolder("u1", "Alice"), Targets: []ledger.ToolKey{free, missing}})

	// assert
	require.NoError(t, err)
	assert.True(t, metrics.HasRecord(testdoubles.KindDuration, loans.OperationDurationMetric,
		map[string]string{"operation": "borrow", "status": loans.StatusSuccess}))
	assert.True(t, metrics.HasRecord(testdoubles.KindCounter, loans.OperationCallsMetric,
		map[string]string{"operation": "borrow", "status": loans.StatusSuccess}))
	assert.True(t, metrics.HasRecord(testdoubles.KindCounter, loans.ItemOutcomesMetric,
		map[string]string{"operation": "borrow", "outcome": loans.OutcomeSucceeded}))
	assert.True(t, metrics.HasRecord(testdoubles.KindCounter, loans.ItemOutcomesMetric,
		map[string]string{"operation": "borrow", "outcome": "not_found"}))
	assert.True(t, metrics.HasRecord(testdoubles.KindCounter, loans.CacheSyncMetric,
		map[string]string{"mode": "patch", "status": loans.StatusSuccess}))
}

func Test_Service_With_Tracing_Wraps_Each_Operation_In_A_Span(t *testing.T) {
	// arrange
	ctx := t.Context()
	tracing := testdoubles.NewTracingCollectorSpy(true)
	f := givenService(t, loans.WithTracing(tracing))
	key := FixtureKey(t, "A", "1")
	givenToolsInService(t, f.svc, key)

	// act
	_, err := f.svc.Borrow(ctx, loans.BorrowRequest{Holder: FixtureHolder("u1", "Alice"), Targets: []ledger.ToolKey{key}})

	// assert
	require.NoError(t, err)
	assert.True(t, tracing.HasFinishedSpan("loans.refresh", loans.StatusSuccess))
	assert.True(t, tracing.HasFinishedSpan("loans.add_tool", loans.StatusSuccess))
	assert.True(t, tracing.HasFinishedSpan("loans.borrow", loans.StatusSuccess))

	spans := tracing.Spans("loans.borrow")
	require.Len(t, spans, 1)
	assert.Equal(t, "u1", spans[0].StartAttributes["holder_id"])
	assert.NotEmpty(t, spans[0].StartAttributes["operation_id"])
}

func Test_Service_With_Contextual_Logger_Logs_Start_And_Completion(t *testing.T) {
	// arrange
	ctx := t.Context()
	logger := testdoubles.NewContextualLoggerSpy(true)
	f := givenService(t, loans.WithContextualLogger(logger))

	// act
	_, err := f.svc.MyLoans(ctx, "u1")

	// assert
	require.NoError(t, err)
	assert.True(t, logger.HasLog(testdoubles.LevelDebug, "loans operation started"))

	record, found := logger.FindLog(testdoubles.LevelInfo, "loans operation completed")
	require.True(t, found)
	operation, _ := record.Attr("operation")
	assert.Equal(t, "refresh", operation)

	completed := logger.Records(testdoubles.LevelInfo)
	last := completed[len(completed)-1]
	lastOperation, _ := last.Attr("operation")
	toolCount, _ := last.Attr("tool_count")
	assert.Equal(t, "my_loans", lastOperation)
	assert.Equal(t, 0, toolCount)
}

func Test_Service_When_An_Operation_Fails_It_Logs_And_Records_The_Error(t *testing.T) {
	// arrange
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	logger := testdoubles.NewLoggerSpy(true)
	f := givenService(t, loans.WithMetrics(metrics), loans.WithLogger(logger))
	require.NoError(t, f.store.DropSchema(t.Context()))

	// act
	_, err := f.svc.AllTools(t.Context())

	// assert
	assert.ErrorIs(t, err, ledger.ErrQueryFailed)
	assert.True(t, logger.HasLog(testdoubles.LevelError, "loans operation failed"))
	assert.True(t, metrics.HasRecord(testdoubles.KindCounter, loans.OperationCallsMetric,
		map[string]string{"operation": "all_tools", "status": loans.StatusError}))
}
