package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, invalid_coordinate, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, string(domain.KindBadRequest), msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, string(domain.KindNotFound), msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidCoordinate, domain.KindBadRequest:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindOriginUnknown:
		return fiber.StatusUnprocessableEntity
	case domain.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// errFromDomain writes err using its domain kind. Internal errors are logged
// and answered with a generic message.
func errFromDomain(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == fiber.StatusInternalServerError {
		logging.FromContext(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return newError(c, status, string(domain.KindInternal), "internal error")
	}
	return newError(c, status, string(kind), domain.MessageOf(err))
}
