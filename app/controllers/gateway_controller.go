package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayGate/app/models"
	"github.com/ManuelReschke/PayGate/internal/pkg/cache"
	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

const probeTimeout = 10 * time.Second

// GatewayDirectory is satisfied by *gateway.Factory.
type GatewayDirectory interface {
	Resolve(ctx context.Context, tenantID, providerName string) (gateway.Gateway, error)
	Evict(tenantID, providerName string) int
	Stats() gateway.CacheStats
	ListSupportedGateways() []string
	DefaultGateway() string
}

// EvictionPublisher is satisfied by *cache.EvictionBus.
type EvictionPublisher interface {
	Publish(ctx context.Context, msg cache.EvictionMessage) error
}

// CounterSnapshotter is satisfied by *counter.WebhookCounters.
type CounterSnapshotter interface {
	Snapshot(ctx context.Context, gatewayNames []string) (map[string]map[string]int64, error)
}

// CredentialStore is satisfied by *credentials.StoreSource.
type CredentialStore interface {
	Save(ctx context.Context, in credentials.Credentials) (*models.GatewayCredential, error)
}

// GatewayController exposes gateway discovery, health probes, cache
// operations and credential rotation.
type GatewayController struct {
	gateways GatewayDirectory
	bus      EvictionPublisher
	counters CounterSnapshotter
	store    CredentialStore
}

type GatewayControllerOption func(*GatewayController)

// WithEvictionPublisher broadcasts evictions to other instances.
func WithEvictionPublisher(bus EvictionPublisher) GatewayControllerOption {
	return func(gc *GatewayController) {
		gc.bus = bus
	}
}

func WithCounters(counters CounterSnapshotter) GatewayControllerOption {
	return func(gc *GatewayController) {
		gc.counters = counters
	}
}

// WithCredentialStore enables the credential rotation endpoint.
func WithCredentialStore(store CredentialStore) GatewayControllerOption {
	return func(gc *GatewayController) {
		gc.store = store
	}
}

func NewGatewayController(gateways GatewayDirectory, opts ...GatewayControllerOption) *GatewayController {
	gc := &GatewayController{gateways: gateways}
	for _, opt := range opts {
		opt(gc)
	}
	return gc
}

func (gc *GatewayController) HandleListGateways(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"gateways": gc.gateways.ListSupportedGateways(),
		"default":  gc.gateways.DefaultGateway(),
	})
}

// HandleGatewayHealth resolves the tenant's gateway and probes connectivity.
func (gc *GatewayController) HandleGatewayHealth(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Query("tenant"))
	provider := gateway.NormalizeName(c.Params("provider"))

	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	gw, err := gc.gateways.Resolve(ctx, tenantID, provider)
	if err != nil {
		return errorJSON(c, err)
	}

	result := gw.VerifyConnectivity(ctx)
	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"tenant":       tenantID,
		"identity":     gw.Identify(),
		"available":    result.Success,
		"connectivity": result,
	})
}

func (gc *GatewayController) HandleCacheStats(c *fiber.Ctx) error {
	return c.JSON(gc.gateways.Stats())
}

type evictRequest struct {
	TenantID string `json:"tenantId"`
	Provider string `json:"provider"`
}

// HandleEvict drops cached gateways locally and broadcasts the eviction to
// other instances. Empty fields are wildcards.
func (gc *GatewayController) HandleEvict(c *fiber.Ctx) error {
	var req evictRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
		}
	}

	evicted, broadcast := gc.evict(c.UserContext(), req.TenantID, req.Provider)
	return c.JSON(fiber.Map{"evicted": evicted, "broadcast": broadcast})
}

func (gc *GatewayController) evict(ctx context.Context, tenantID, provider string) (int, bool) {
	evicted := gc.gateways.Evict(tenantID, provider)
	if gc.bus == nil {
		return evicted, false
	}
	if err := gc.bus.Publish(ctx, cache.EvictionMessage{TenantID: tenantID, Provider: provider}); err != nil {
		log.Warnf("[GatewayController] Eviction broadcast failed: %v", err)
		return evicted, false
	}
	return evicted, true
}

type credentialsRequest struct {
	AccessToken   string `json:"accessToken"`
	PublicKey     string `json:"publicKey"`
	WebhookSecret string `json:"webhookSecret"`
	Sandbox       bool   `json:"sandbox"`
}

// HandleSaveCredentials stores rotated tenant credentials and evicts the
// cached adapter everywhere so the next request picks them up.
func (gc *GatewayController) HandleSaveCredentials(c *fiber.Ctx) error {
	if gc.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "credential_store_disabled", "message": "GATEWAY_CREDENTIALS_KEY is not configured"})
	}

	tenantID := strings.TrimSpace(c.Params("tenant"))
	provider := gateway.NormalizeName(c.Params("provider"))
	if !gc.isSupported(provider) {
		return errorJSON(c, &gateway.UnsupportedGatewayError{Gateway: provider, Supported: gc.gateways.ListSupportedGateways()})
	}

	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
	}
	if strings.TrimSpace(req.AccessToken) == "" && strings.TrimSpace(req.WebhookSecret) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "accessToken or webhookSecret is required"})
	}

	row, err := gc.store.Save(c.UserContext(), credentials.Credentials{
		TenantID:      tenantID,
		Provider:      provider,
		AccessToken:   strings.TrimSpace(req.AccessToken),
		PublicKey:     req.PublicKey,
		WebhookSecret: strings.TrimSpace(req.WebhookSecret),
		Sandbox:       req.Sandbox,
	})
	if err != nil {
		log.Errorf("[GatewayController] Saving %s credentials for tenant %s failed: %v", provider, tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "credential_save_failed"})
	}

	evicted, broadcast := gc.evict(c.UserContext(), tenantID, provider)
	log.Infof("[GatewayController] Rotated %s credentials for tenant %s", provider, tenantID)
	return c.JSON(fiber.Map{
		"ok":        true,
		"tenant":    row.TenantID,
		"provider":  row.Provider,
		"rotatedAt": row.RotatedAt,
		"evicted":   evicted,
		"broadcast": broadcast,
	})
}

func (gc *GatewayController) isSupported(provider string) bool {
	for _, name := range gc.gateways.ListSupportedGateways() {
		if name == provider {
			return true
		}
	}
	return false
}

// HandleWebhookStats reports webhook outcome counters per gateway.
func (gc *GatewayController) HandleWebhookStats(c *fiber.Ctx) error {
	if gc.counters == nil {
		return c.JSON(fiber.Map{"webhooks": fiber.Map{}})
	}
	snapshot, err := gc.counters.Snapshot(c.UserContext(), gc.gateways.ListSupportedGateways())
	if err != nil {
		log.Warnf("[GatewayController] Reading webhook counters failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.JSON(fiber.Map{"webhooks": snapshot})
}
