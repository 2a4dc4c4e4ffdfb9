package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const keyRequestID contextKey = "request_id"

// WithRequestID pins the request id a client records for calls made with ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the request id from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}
