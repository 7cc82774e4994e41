package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// resourceIDKeys names the :id route parameter per resource, so access logs
// of /v1/points/42 and /v1/preleveurs/42 can be told apart by field.
var resourceIDKeys = map[string]string{
	"/v1/points/":     "point_id",
	"/v1/preleveurs/": "preleveur_id",
}

// AccessLogMiddleware writes one structured line per request through the
// request logger, so request_id, trace_id and session_id ride along. The
// message uses the route pattern rather than the raw path. Health checks
// and metric scrapes are logged at debug.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "/" {
			// unmatched; only middleware ran
			route = path
		}
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		for prefix, key := range resourceIDKeys {
			if strings.HasPrefix(route, prefix) {
				if id := c.Params("id"); id != "" {
					attrs = append(attrs, slog.String(key, id))
				}
			}
		}

		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case path == "/metrics" || path == "/v1/health" || path == "/v1/ready":
			level = slog.LevelDebug
		}

		LoggerFromCtx(c.UserContext()).LogAttrs(c.Context(), level, c.Method()+" "+route, attrs...)
		return err
	}
}
