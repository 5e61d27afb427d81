package oteladapters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/guildworks/toolledger/ledger/oteladapters"
)

func givenTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func Test_TracingCollector_StartSpan_Then_FinishSpan_Exports_Attributes_And_Status(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	ctx, spanCtx := collector.StartSpan(t.Context(), "sqlengine.acquire", map[string]string{
		"operation": "acquire",
		"tool_key":  "drill/makita",
	})
	spanCtx.AddAttribute("holder_id", "u1")
	collector.FinishSpan(spanCtx, "success", map[string]string{"result": "granted"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "sqlengine.acquire", span.Name)
	assertSpanHasAttribute(t, span, "operation", "acquire")
	assertSpanHasAttribute(t, span, "tool_key", "drill/makita")
	assertSpanHasAttribute(t, span, "holder_id", "u1")
	assertSpanHasAttribute(t, span, "result", "granted")
	assert.Equal(t, codes.Ok, span.Status.Code)
}

func Test_TracingCollector_Maps_Status_Strings(t *testing.T) {
	testCases := []struct {
		status      string
		code        codes.Code
		description string
	}{
		{status: "ok", code: codes.Ok},
		{status: "completed", code: codes.Ok},
		{status: "error", code: codes.Error, description: "Operation failed"},
		{status: "canceled", code: codes.Error, description: "Operation cancelled"},
		{status: "timeout", code: codes.Error, description: "Operation timed out"},
		{status: "conflict", code: codes.Error, description: "Concurrency conflict"},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			collector, exporter := givenTracingCollector()

			_, spanCtx := collector.StartSpan(t.Context(), "op", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.code, spans[0].Status.Code)
			assert.Equal(t, tc.description, spans[0].Status.Description)
		})
	}
}

func Test_TracingCollector_Records_Unknown_Status_As_Attribute(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(t.Context(), "op", nil)
	collector.FinishSpan(spanCtx, "not_applied", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "status", "not_applied")
}

func Test_TracingCollector_Nests_Spans_Through_The_Context(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	parentCtx, parent := collector.StartSpan(t.Context(), "loans.borrow", nil)
	_, child := collector.StartSpan(parentCtx, "sqlengine.acquire", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "sqlengine.acquire", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_Ignores_Foreign_Span_Contexts(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	collector.FinishSpan(foreignSpanContext{}, "success", map[string]string{"k": "v"})

	// assert
	assert.Empty(t, exporter.GetSpans())
}

type foreignSpanContext struct{}

func (foreignSpanContext) SetStatus(string)            {}
func (foreignSpanContext) AddAttribute(string, string) {}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			return
		}
	}

	assert.Failf(t, "missing span attribute", "span should have attribute %s=%s", key, expectedValue)
}
