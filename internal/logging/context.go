package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// GenerateCorrelationID returns the first 8 characters of a new UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID keeps an existing correlation id and only
// generates one when the context has none.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	if CorrelationIDFromContext(ctx) != "" {
		return ctx
	}
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with the context's correlation id attached.
//
//	logging.Ctx(ctx).Info().Msg("resolved availability")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}
