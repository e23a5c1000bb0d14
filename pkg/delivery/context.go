package delivery

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/postbox/pkg/logger"
)

type logIDKey struct{}

// ContextWithLogID tags ctx with the delivery log being processed.
func ContextWithLogID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logIDKey{}, id)
}

// LogIDFromContext returns the delivery log id stored in ctx.
func LogIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(logIDKey{}).(string)
	return id, ok && id != ""
}

// LogIDExtractor adds log_id to every record logged with a tagged context.
func LogIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := LogIDFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.String("log_id", id), true
	}
}
