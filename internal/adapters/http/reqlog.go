package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

type loggerKey struct{}

// RequestIDLogMiddleware stores a request-scoped logger in the user context.
// It carries the request ID and, when the request is traced, the trace ID,
// so a log line can be joined with its span.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var attrs []any
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, "request_id", rid)
		}
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.IsValid() {
			attrs = append(attrs, "trace_id", sc.TraceID().String())
		}
		if len(attrs) > 0 {
			withLogAttrs(c, attrs...)
		}
		return c.Next()
	}
}

// withLogAttrs adds attributes to the request logger for the rest of the
// request.
func withLogAttrs(c *fiber.Ctx, args ...any) *slog.Logger {
	l := LoggerFromCtx(c.UserContext()).With(args...)
	c.SetUserContext(context.WithValue(c.UserContext(), loggerKey{}, l))
	return l
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
