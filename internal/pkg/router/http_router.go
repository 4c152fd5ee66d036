package router

import (
	"github.com/gofiber/fiber/v2"
)

// HttpRouter mounts the provider-facing webhook endpoints.
type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	webhooks := app.Group("/webhooks")
	webhooks.Post("/:provider/:tenant", h.deps.Webhooks.HandleWebhook)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
