package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win. Analytics may only be reused by
// clients for as long as the server itself caches it.
func CachingMiddleware(analyticsTTL time.Duration) fiber.Handler {
	analytics := "no-cache"
	if secs := int(analyticsTTL / time.Second); secs > 0 {
		analytics = "private, max-age=" + strconv.Itoa(secs)
	}

	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/api/health" || path == "/api/ready" || path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/api/locations"):
			ttl = "no-store" // live positions

		case path == "/api/customer-analytics":
			ttl = analytics

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/api/"):
			ttl = "private, max-age=0"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
