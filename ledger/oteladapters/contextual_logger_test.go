package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"

	"github.com/guildworks/toolledger/ledger/oteladapters"
)

func Test_SlogBridgeLogger_Writes_All_Levels_To_The_Handler(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	ctx := t.Context()

	// act
	logger.DebugContext(ctx, "tool acquired", "tool_key", "drill/makita")
	logger.InfoContext(ctx, "cache reloaded")
	logger.WarnContext(ctx, "tool removed while on loan")
	logger.ErrorContext(ctx, "notify failed")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG"`)
	assert.Contains(t, output, `"tool_key":"drill/makita"`)
	assert.Contains(t, output, `"msg":"cache reloaded"`)
	assert.Contains(t, output, `"level":"WARN"`)
	assert.Contains(t, output, `"level":"ERROR"`)
}

func Test_NewSlogBridgeLogger_Uses_The_Global_Provider(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("toolledger")

	assert.NotPanics(t, func() {
		logger.InfoContext(t.Context(), "no provider configured")
	})
}

func Test_OTelLogger_Emits_Records_With_Severity_And_Attributes(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)
	ctx := t.Context()

	// act
	logger.DebugContext(ctx, "debug")
	logger.InfoContext(ctx, "borrowed", "holder_id", "u1", "count", 2, "dangling")
	logger.WarnContext(ctx, "warn")
	logger.ErrorContext(ctx, "error", 42, "ignored")

	// assert
	records := recorder.all()
	require.Len(t, records, 4)
	assert.Equal(t, log.SeverityDebug, records[0].Severity())
	assert.Equal(t, log.SeverityWarn, records[2].Severity())
	assert.Equal(t, log.SeverityError, records[3].Severity())

	info := records[1]
	assert.Equal(t, log.SeverityInfo, info.Severity())
	assert.Equal(t, "borrowed", info.Body().AsString())
	assert.Equal(t, map[string]string{"holder_id": "u1", "count": "2"}, attributesOf(info))
	assert.Empty(t, attributesOf(records[3]))
}

type recordingLogger struct {
	embedded.Logger

	mu      sync.Mutex
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record.Clone())
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func (l *recordingLogger) all() []log.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]log.Record(nil), l.records...)
}

func attributesOf(record log.Record) map[string]string {
	attrs := make(map[string]string)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})

	return attrs
}
