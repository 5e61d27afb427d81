// Package oteladapters provides OpenTelemetry implementations of the ledger observability interfaces.
//
// TracingCollector wraps a trace.Tracer, MetricsCollector wraps a metric.Meter and SlogBridgeLogger
// routes contextual logs through the otelslog bridge so they carry the active trace.
package oteladapters
