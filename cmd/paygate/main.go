package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PayGate/app/controllers"
	"github.com/ManuelReschke/PayGate/internal/pkg/billing"
	"github.com/ManuelReschke/PayGate/internal/pkg/cache"
	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/database"
	"github.com/ManuelReschke/PayGate/internal/pkg/env"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway/providers"
	"github.com/ManuelReschke/PayGate/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PayGate/internal/pkg/middleware"
	"github.com/ManuelReschke/PayGate/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	source, store := credentialSource()
	registry := providers.NewRegistry(source, providers.ConfigFromEnv())
	factory := gateway.NewFactory(registry, gateway.WithTTL(env.GetEnvDuration("GATEWAY_CACHE_TTL", gateway.DefaultCacheTTL)))

	bus := cache.NewEvictionBus(cache.GetClient(), env.GetEnv("GATEWAY_EVICTION_CHANNEL", cache.DefaultEvictionChannel))
	go func() {
		if err := bus.Listen(context.Background(), factory); err != nil {
			log.Errorf("[PayGate] Eviction listener stopped: %v", err)
		}
	}()

	svc := billing.NewServiceFromDB(database.GetDB(), factory,
		billing.WithStatusConfirmer(billing.FetchConfirmer{}),
	)

	counters := counter.NewWebhookCounters(cache.GetClient())
	adminToken := env.GetEnv("ADMIN_API_TOKEN", "")

	gatewayOpts := []controllers.GatewayControllerOption{
		controllers.WithEvictionPublisher(bus),
		controllers.WithCounters(counters),
	}
	if store != nil {
		gatewayOpts = append(gatewayOpts, controllers.WithCredentialStore(store))
	}

	app := fiber.New(fiber.Config{
		AppName:   "PayGate",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", middleware.AdminTokenMiddleware(adminToken), monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Webhooks:   controllers.NewWebhookController(svc, counters),
		Gateways:   controllers.NewGatewayController(factory, gatewayOpts...),
		AdminToken: adminToken,
	})

	log.Infof("[PayGate] Gateways: %v (default %s)", factory.ListSupportedGateways(), factory.DefaultGateway())
	return app
}

// credentialSource prefers per-tenant stored credentials and falls back to
// platform-level environment credentials. The store is nil without a key.
func credentialSource() (credentials.Source, *credentials.StoreSource) {
	key := env.GetEnv("GATEWAY_CREDENTIALS_KEY", "")
	if key == "" {
		log.Warn("[PayGate] GATEWAY_CREDENTIALS_KEY not set, using environment credentials only")
		return credentials.EnvSource{}, nil
	}
	cipher, err := credentials.NewCipher(key)
	if err != nil {
		log.Fatalf("[PayGate] Invalid GATEWAY_CREDENTIALS_KEY: %v", err)
	}
	store := credentials.NewStoreSourceFromDB(database.GetDB(), cipher)
	return credentials.Chain(store, credentials.EnvSource{}), store
}
