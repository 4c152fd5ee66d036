package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PayGate/app/models"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

// stubGateway returns canned webhook results and resource reads.
type stubGateway struct {
	gateway.NoAuthorizedPayments

	valid     bool
	event     gateway.NormalizedEvent
	sub       *gateway.SubscriptionDetails
	payment   *gateway.PaymentDetails
	readErr   error
	readCalls int
}

func (g *stubGateway) Identify() gateway.Identity { return gateway.NewIdentity("stub", true) }

func (g *stubGateway) CreateSubscription(context.Context, gateway.SubscriptionRequest) (*gateway.SubscriptionResult, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) GetSubscription(_ context.Context, id string) (*gateway.SubscriptionDetails, error) {
	g.readCalls++
	if g.readErr != nil {
		return nil, g.readErr
	}
	out := *g.sub
	out.ID = id
	return &out, nil
}

func (g *stubGateway) UpdateSubscriptionAmount(context.Context, string, decimal.Decimal, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) CancelSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) PauseSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) ResumeSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) GetPayment(_ context.Context, id string) (*gateway.PaymentDetails, error) {
	g.readCalls++
	if g.readErr != nil {
		return nil, g.readErr
	}
	out := *g.payment
	out.ID = id
	return &out, nil
}

func (g *stubGateway) ValidateWebhook(gateway.WebhookSignature) bool { return g.valid }

func (g *stubGateway) NormalizeEvent([]byte) gateway.NormalizedEvent { return g.event }

func (g *stubGateway) VerifyConnectivity(context.Context) gateway.ConnectivityResult {
	return gateway.ConnectivityResult{Success: true}
}

type stubResolver struct {
	gw  gateway.Gateway
	err error
}

func (r stubResolver) Resolve(context.Context, string, string) (gateway.Gateway, error) {
	return r.gw, r.err
}

// memoryRepository mimics the unique (tenant_id, provider, provider_event_id)
// and (tenant_id, provider, provider_subscription_id) constraints.
type memoryRepository struct {
	mu            sync.Mutex
	events        map[string]*models.BillingWebhookEvent
	subscriptions map[string]*models.BillingSubscription
	upsertErr     error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		events:        map[string]*models.BillingWebhookEvent{},
		subscriptions: map[string]*models.BillingSubscription{},
	}
}

func repoKey(parts ...string) string {
	return strings.Join(parts, "/")
}

func (m *memoryRepository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := repoKey(event.TenantID, event.Provider, event.ProviderEventID)
	if stored, ok := m.events[k]; ok {
		cp := *stored
		return false, &cp, nil
	}
	event.ID = uint(len(m.events) + 1)
	cp := *event
	m.events[k] = &cp
	out := cp
	return true, &out, nil
}

func (m *memoryRepository) byID(id uint) *models.BillingWebhookEvent {
	for _, e := range m.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (m *memoryRepository) ClaimWebhookEvent(_ context.Context, id uint, claimedAt, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.byID(id)
	if e == nil {
		return false, nil
	}
	if e.ProcessedAt != nil && e.ProcessingError == "" {
		return false, nil
	}
	if e.ClaimedAt != nil && !e.ClaimedAt.Before(staleBefore) {
		return false, nil
	}
	at := claimedAt
	e.ClaimedAt = &at
	return true, nil
}

func (m *memoryRepository) ReplaceWebhookDelivery(_ context.Context, id uint, event *models.BillingWebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.byID(id)
	if e == nil {
		return errors.New("webhook event not found")
	}
	e.EventType = event.EventType
	e.ResourceID = event.ResourceID
	e.PayloadJSON = event.PayloadJSON
	e.SignatureValid = event.SignatureValid
	return nil
}

func (m *memoryRepository) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.byID(id)
	if e == nil {
		return errors.New("webhook event not found")
	}
	now := time.Now()
	e.ProcessedAt = &now
	e.ProcessingError = processingError
	e.ClaimedAt = nil
	return nil
}

func (m *memoryRepository) UpsertSubscription(_ context.Context, sub *models.BillingSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *sub
	m.subscriptions[repoKey(sub.TenantID, sub.Provider, sub.ProviderSubscriptionID)] = &cp
	return nil
}

func (m *memoryRepository) event(tenantID, provider, eventID string) *models.BillingWebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[repoKey(tenantID, provider, eventID)]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (m *memoryRepository) onlyEvent() *models.BillingWebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		cp := *e
		return &cp
	}
	return nil
}

func (m *memoryRepository) subscription(tenantID, provider, id string) *models.BillingSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[repoKey(tenantID, provider, id)]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}
