package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayGate/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the controllers the routers mount.
type Dependencies struct {
	Webhooks   *controllers.WebhookController
	Gateways   *controllers.GatewayController
	AdminToken string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
