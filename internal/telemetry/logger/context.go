package logger

import (
	"context"
	"log/slog"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey    contextKey = "tlsmesh.logger"
	requestIDKey contextKey = "tlsmesh.request_id"
	roundIDKey   contextKey = "tlsmesh.round_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRoundID adds a fan-out round ID to the context.
func WithRoundID(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, roundIDKey, roundID)
}

// RoundIDFromContext extracts the fan-out round ID from context.
func RoundIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(roundIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the request ID and round ID from the context.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)

	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if roundID := RoundIDFromContext(ctx); roundID != "" {
		l = l.With("round_id", roundID)
	}

	return l
}
