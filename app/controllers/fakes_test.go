package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayGate/app/models"
	"github.com/ManuelReschke/PayGate/internal/pkg/billing"
	"github.com/ManuelReschke/PayGate/internal/pkg/cache"
	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

type recordingWebhookService struct {
	outcome *billing.WebhookOutcome
	err     error
	got     []billing.WebhookRequest
}

func (s *recordingWebhookService) HandleWebhook(_ context.Context, in billing.WebhookRequest) (*billing.WebhookOutcome, error) {
	s.got = append(s.got, in)
	return s.outcome, s.err
}

type recordingCounter struct {
	mu    sync.Mutex
	added []string
}

func (r *recordingCounter) Add(_ context.Context, gatewayName, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, gatewayName+"/"+outcome)
	return nil
}

type probeGateway struct {
	gateway.NoAuthorizedPayments
	name   string
	result gateway.ConnectivityResult
}

func (g probeGateway) Identify() gateway.Identity { return gateway.NewIdentity(g.name, true) }

func (probeGateway) CreateSubscription(context.Context, gateway.SubscriptionRequest) (*gateway.SubscriptionResult, error) {
	return nil, errors.New("not used")
}

func (probeGateway) GetSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) UpdateSubscriptionAmount(context.Context, string, decimal.Decimal, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) CancelSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) PauseSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) ResumeSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) GetPayment(context.Context, string) (*gateway.PaymentDetails, error) {
	return nil, errors.New("not used")
}

func (probeGateway) ValidateWebhook(gateway.WebhookSignature) bool { return true }

func (g probeGateway) NormalizeEvent(payload []byte) gateway.NormalizedEvent {
	return gateway.UnknownEvent(g.name, payload, time.Now())
}

func (g probeGateway) VerifyConnectivity(context.Context) gateway.ConnectivityResult {
	return g.result
}

type fakeDirectory struct {
	gw         gateway.Gateway
	resolveErr error
	evictions  []string
	evictCount int
}

func (d *fakeDirectory) Resolve(context.Context, string, string) (gateway.Gateway, error) {
	return d.gw, d.resolveErr
}

func (d *fakeDirectory) Evict(tenantID, providerName string) int {
	d.evictions = append(d.evictions, tenantID+"/"+providerName)
	return d.evictCount
}

func (d *fakeDirectory) Stats() gateway.CacheStats {
	return gateway.CacheStats{Total: 3, Active: 2, Expired: 1, TTLMs: 300000}
}

func (d *fakeDirectory) ListSupportedGateways() []string { return []string{"mercadopago", "stripe"} }

func (d *fakeDirectory) DefaultGateway() string { return "mercadopago" }

type fakePublisher struct {
	err  error
	sent []cache.EvictionMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg cache.EvictionMessage) error {
	p.sent = append(p.sent, msg)
	return p.err
}

type fakeSnapshotter struct {
	snapshot map[string]map[string]int64
	err      error
}

func (f fakeSnapshotter) Snapshot(context.Context, []string) (map[string]map[string]int64, error) {
	return f.snapshot, f.err
}

type fakeStore struct {
	err   error
	saved []credentials.Credentials
}

func (s *fakeStore) Save(_ context.Context, in credentials.Credentials) (*models.GatewayCredential, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.saved = append(s.saved, in)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.GatewayCredential{TenantID: in.TenantID, Provider: in.Provider, RotatedAt: &now}, nil
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{DisableStartupMessage: true})
}
