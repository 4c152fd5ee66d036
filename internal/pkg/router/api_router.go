package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PayGate/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")
	v1.Get("/gateways", h.deps.Gateways.HandleListGateways)
	v1.Get("/gateways/:provider/health", h.deps.Gateways.HandleGatewayHealth)

	admin := v1.Group("/admin", middleware.AdminTokenMiddleware(h.deps.AdminToken))
	admin.Get("/gateways/cache", h.deps.Gateways.HandleCacheStats)
	admin.Post("/gateways/evict", h.deps.Gateways.HandleEvict)
	admin.Get("/webhooks/stats", h.deps.Gateways.HandleWebhookStats)
	admin.Put("/tenants/:tenant/gateways/:provider/credentials", h.deps.Gateways.HandleSaveCredentials)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
