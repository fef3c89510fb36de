package logging

import (
	"context"
	"log/slog"

	"uploadflow/internal/services"
)

// WithContext returns logger enriched with the session, stage and request
// identifiers stored in ctx. Missing values are omitted.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var attrs []Attr
	if id, ok := services.SessionIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldSessionID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, rid))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(toArgs(attrs)...)
}
