package http

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
)

type callerKey struct{}

const callerLocal = "caller_id"

// IdentityMiddleware reads the authenticated user id that the upstream
// gateway puts in header. Requests without a positive integer id get 401.
func IdentityMiddleware(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(header))
		if raw == "" {
			return errUnauthorized(c, "missing "+header+" header")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return errUnauthorized(c, "invalid "+header+" header")
		}

		c.Locals(callerLocal, id)
		ctx := context.WithValue(c.UserContext(), callerKey{}, id)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", id))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// callerID returns the id set by IdentityMiddleware.
func callerID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(callerLocal).(int64)
	return id
}

func callerFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(callerKey{}).(int64)
	return id, ok
}
