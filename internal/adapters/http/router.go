package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/fieldgeo/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(TracingMiddleware())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware(deps.AnalyticsCacheTTL))

	// Health & readiness (no identity, no timeout)
	app.Get("/api/health", HealthHandler(deps))
	app.Get("/api/ready", ReadyHandler(deps))

	SetupDocs(app)

	identity := IdentityMiddleware(deps.identityHeader())

	// Rate limiting per authenticated caller, falling back to IP.
	limit := limiter.New(limiter.Config{
		Max:        deps.rateLimit(),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := callerID(c); id > 0 {
				return "user:" + strconv.FormatInt(id, 10)
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})

	d := deps.requestTimeout()
	api := app.Group("/api", identity, limit)
	api.Post("/locations", timeout.NewWithContext(PostLocationHandler(deps), d))
	api.Get("/locations", timeout.NewWithContext(ListLocationsHandler(deps), d))
	api.Get("/locations/:agent_id", timeout.NewWithContext(GetLocationHandler(deps), d))
	api.Post("/distance", timeout.NewWithContext(DistanceHandler(deps), d))
	api.Post("/route-planning", timeout.NewWithContext(RoutePlanningHandler(deps), d))
	api.Get("/customer-analytics", timeout.NewWithContext(CustomerAnalyticsHandler(deps), d))

	// GraphQL
	app.Post("/graphql", identity, limit, timeout.NewWithContext(GraphQLHandler(deps), d))

	// WebSocket fleet feed
	app.Use("/ws", identity, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/fleet", websocket.New(FleetWebSocketHandler(deps)))
}
