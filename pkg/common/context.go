package common

import (
	"context"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyCanvasID  ContextKey = "canvas_id"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyReadOnly  ContextKey = "read_only"
)

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok
}

// WithCanvasID adds the active canvas ID to context
func WithCanvasID(ctx context.Context, canvasID string) context.Context {
	return context.WithValue(ctx, ContextKeyCanvasID, canvasID)
}

// GetCanvasID extracts the active canvas ID from context
func GetCanvasID(ctx context.Context) (string, bool) {
	canvasID, ok := ctx.Value(ContextKeyCanvasID).(string)
	return canvasID, ok
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithReadOnly marks the context as a shared, read-only canvas view
func WithReadOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyReadOnly, true)
}

// IsReadOnly reports whether the context is a read-only canvas view
func IsReadOnly(ctx context.Context) bool {
	ro, ok := ctx.Value(ContextKeyReadOnly).(bool)
	return ok && ro
}
