package testdoubles

import (
	"context"
	"sync"

	"github.com/guildworks/toolledger/ledger"
)

// Log levels as recorded by the logger spies.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SpyLogRecord represents one recorded log call.
// Context is nil for calls made through the plain Logger interface.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// Attr returns the value logged for key and whether it was present.
func (r SpyLogRecord) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

// logRecorder is the shared storage of LoggerSpy and ContextualLoggerSpy.
type logRecorder struct {
	records     []SpyLogRecord
	mu          sync.Mutex
	recordCalls bool
}

func (r *logRecorder) record(ctx context.Context, level, msg string, args []any) {
	if !r.recordCalls {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, SpyLogRecord{
		Level:   level,
		Message: msg,
		Args:    append([]any(nil), args...),
		Context: ctx,
	})
}

// Records returns a copy of all records of the given level, or of all levels if level is empty.
func (r *logRecorder) Records(level string) []SpyLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]SpyLogRecord, 0, len(r.records))
	for _, record := range r.records {
		if level == "" || record.Level == level {
			result = append(result, record)
		}
	}

	return result
}

// HasLog checks if a log with the specified level and message exists.
func (r *logRecorder) HasLog(level, message string) bool {
	for _, record := range r.Records(level) {
		if record.Message == message {
			return true
		}
	}

	return false
}

// FindLog returns the first record with the specified level and message.
func (r *logRecorder) FindLog(level, message string) (SpyLogRecord, bool) {
	for _, record := range r.Records(level) {
		if record.Message == message {
			return record, true
		}
	}

	return SpyLogRecord{}, false
}

// Count returns the total number of records across all levels.
func (r *logRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// Reset clears all recorded log calls.
func (r *logRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = r.records[:0]
}

// ContextualLoggerSpy is a ContextualLogger implementation that captures contextual logging calls for testing.
type ContextualLoggerSpy struct {
	logRecorder
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy instance.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{logRecorder{recordCalls: recordCalls}}
}

// DebugContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelDebug, msg, args)
}

// InfoContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelInfo, msg, args)
}

// WarnContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelWarn, msg, args)
}

// ErrorContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelError, msg, args)
}

// LoggerSpy is a Logger implementation that captures logging calls for testing.
type LoggerSpy struct {
	logRecorder
}

// NewLoggerSpy creates a new LoggerSpy instance.
func NewLoggerSpy(recordCalls bool) *LoggerSpy {
	return &LoggerSpy{logRecorder{recordCalls: recordCalls}}
}

// Debug implements the Logger interface for testing.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record(nil, LevelDebug, msg, args)
}

// Info implements the Logger interface for testing.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record(nil, LevelInfo, msg, args)
}

// Warn implements the Logger interface for testing.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record(nil, LevelWarn, msg, args)
}

// Error implements the Logger interface for testing.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record(nil, LevelError, msg, args)
}

var (
	_ ledger.ContextualLogger = (*ContextualLoggerSpy)(nil)
	_ ledger.Logger           = (*LoggerSpy)(nil)
)
