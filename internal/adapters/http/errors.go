package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/prelevements/internal/adapters/geocoding"
	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
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
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errBadGateway returns a 502 error.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "bad_gateway", msg)
}

// errFrom maps a service error onto an APIError. what names the missing
// resource in 404 messages.
func errFrom(c *fiber.Ctx, err error, what string) error {
	var upstream *geocoding.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, selection.ErrPointNotFound),
		errors.Is(err, geocoding.ErrCommuneNotFound):
		return errNotFound(c, what+" not found")
	case errors.Is(err, selection.ErrSessionNotFound):
		return errNotFound(c, "session not found")
	case errors.Is(err, selection.ErrStoreClosed):
		return errConflict(c, "session closed")
	case errors.As(err, &upstream):
		return errBadGateway(c, upstream.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, err.Error())
	}
}
