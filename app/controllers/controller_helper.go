package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}

func firstQueryValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Query(k))
		if v != "" {
			return v
		}
	}
	return ""
}

// gatewayErrorStatus maps gateway error kinds to HTTP status codes.
func gatewayErrorStatus(err error) (int, string) {
	var notImpl *gateway.NotImplementedError
	switch {
	case errors.As(err, &notImpl):
		return fiber.StatusNotImplemented, notImpl.Code()
	case errors.Is(err, gateway.ErrConfiguration):
		return fiber.StatusBadRequest, "configuration_error"
	case errors.Is(err, gateway.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, gateway.ErrProvider):
		return fiber.StatusBadGateway, "provider_error"
	default:
		return fiber.StatusInternalServerError, "internal_server_error"
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	status, code := gatewayErrorStatus(err)
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}
