package utils

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"todoservice/shared/logging"
)

// ContextKey type for trace context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "traceId"

	// TraceIDHeader carries the trace ID on HTTP requests/responses and bus messages
	TraceIDHeader = "X-Trace-Id"
)

// GenerateTraceID creates a new random trace ID
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ExtractTraceID returns the trace ID of an incoming request, creating one if missing
func ExtractTraceID(headers http.Header) string {
	if traceID := strings.TrimSpace(headers.Get(TraceIDHeader)); traceID != "" {
		return traceID
	}
	return GenerateTraceID()
}

// WithTraceID adds trace ID to context, also as a logging field
func WithTraceID(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, TraceIDKey, traceID)
	return logging.NewContext(ctx, logging.Fields{"traceId": traceID})
}

// GetTraceID extracts trace ID from context
func GetTraceID(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	return traceID, ok
}

// EnsureTraceID ensures context has a trace ID, creates one if missing
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID, ok := GetTraceID(ctx); ok {
		return ctx, traceID
	}

	traceID := GenerateTraceID()
	return WithTraceID(ctx, traceID), traceID
}
