package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/prelevements/internal/pkg/metrics"
	"github.com/samirrijal/prelevements/internal/pkg/telemetry"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Tracing (no-op unless a tracer provider is installed)
	app.Use(telemetry.Middleware())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/points", withTimeout(ListPointsHandler(deps)))
	v1.Get("/points/nearby", withTimeout(NearbyPointsHandler(deps)))
	v1.Get("/points/:id", withTimeout(GetPointHandler(deps)))
	v1.Get("/points/:id/neighbours", withTimeout(PointNeighboursHandler(deps)))
	v1.Get("/preleveurs", withTimeout(ListPreleveursHandler(deps)))
	v1.Get("/preleveurs/:id", withTimeout(GetPreleveurHandler(deps)))
	v1.Get("/preleveurs/:id/points", withTimeout(PreleveurPointsHandler(deps)))
	v1.Get("/filters/options", FilterOptionsHandler())
	v1.Get("/stats", withTimeout(StatsHandler(deps)))
	v1.Get("/communes/reverse", withTimeout(ReverseCommuneHandler(deps)))

	// Sessions: the shared filter and selection state of one client
	v1.Post("/sessions", CreateSessionHandler(deps))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))
	v1.Put("/sessions/:id/filters", SetFiltersHandler(deps))
	v1.Delete("/sessions/:id/filters", ClearFiltersHandler(deps))
	v1.Put("/sessions/:id/selection", SelectPointHandler(deps))
	v1.Delete("/sessions/:id/selection", DeselectPointHandler(deps))

	// GraphQL
	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Sessions)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}
