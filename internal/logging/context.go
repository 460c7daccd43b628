package logging

import (
	"context"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext tags ctx with a trace id and carries a logger tagged
// with the same id
func WithTraceContext(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return NewContext(ctx, FromContext(ctx).WithTraceID(traceID))
}

// TraceID returns the trace id carried by ctx, if any
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// For tags l with the trace id carried by ctx. Without one l is returned
// unchanged.
func (l *Logger) For(ctx context.Context) *Logger {
	if id := TraceID(ctx); id != "" {
		return l.WithTraceID(id)
	}
	return l
}
