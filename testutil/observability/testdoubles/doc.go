// Package testdoubles provides test doubles (spies) for the ledger observability interfaces.
//
// This package contains spy implementations of the dependency-free interfaces defined in
// package ledger:
//   - MetricsCollectorSpy: captures metrics recording calls for verification
//   - TracingCollectorSpy: captures tracing spans and their attributes
//   - ContextualLoggerSpy: captures structured logging with context
//   - LoggerSpy: captures plain structured logging
//
// All spies are safe for concurrent use and can be switched off with recordCalls=false,
// in which case they only satisfy the interface.
package testdoubles
