package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// AdvisorIDKey is the context key for advisor identifiers.
	AdvisorIDKey contextKey = "advisor_id"

	// ContentIDKey is the context key for content item identifiers.
	ContentIDKey contextKey = "content_id"

	// DeliveryIDKey is the context key for delivery identifiers.
	DeliveryIDKey contextKey = "delivery_id"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// orderedKeys fixes the attribute order in log output.
var orderedKeys = []contextKey{RequestIDKey, AdvisorIDKey, ContentIDKey, DeliveryIDKey, TraceIDKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// WithAdvisorID adds an advisor ID to the context.
func WithAdvisorID(ctx context.Context, advisorID string) context.Context {
	return context.WithValue(ctx, AdvisorIDKey, advisorID)
}

// GetAdvisorID retrieves the advisor ID from the context.
func GetAdvisorID(ctx context.Context) string {
	return getString(ctx, AdvisorIDKey)
}

// WithContentID adds a content ID to the context.
func WithContentID(ctx context.Context, contentID string) context.Context {
	return context.WithValue(ctx, ContentIDKey, contentID)
}

// GetContentID retrieves the content ID from the context.
func GetContentID(ctx context.Context) string {
	return getString(ctx, ContentIDKey)
}

// WithDeliveryID adds a delivery ID to the context.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	return context.WithValue(ctx, DeliveryIDKey, deliveryID)
}

// GetDeliveryID retrieves the delivery ID from the context.
func GetDeliveryID(ctx context.Context) string {
	return getString(ctx, DeliveryIDKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields extracts known identifiers from ctx as key-value pairs.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range orderedKeys {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
