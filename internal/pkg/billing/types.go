package billing

import (
	"context"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

// WebhookRequest carries a webhook delivery with its headers already
// extracted by the transport layer.
type WebhookRequest struct {
	TenantID  string
	Provider  string
	EventID   string
	Signature string
	RequestID string
	DataID    string
	Payload   []byte
}

// WebhookOutcome reports what HandleWebhook did with a delivery. InProgress
// marks a Duplicate whose first copy is still being processed.
type WebhookOutcome struct {
	WebhookEventID uint
	Gateway        string
	SignatureValid bool
	Duplicate      bool
	InProgress     bool
	Ignored        bool
	Confirmed      bool
	Event          *gateway.NormalizedEvent
}

// GatewayResolver is satisfied by *gateway.Factory.
type GatewayResolver interface {
	Resolve(ctx context.Context, tenantID, providerName string) (gateway.Gateway, error)
}

// EventHandler is the billing workflow that turns normalized events into
// tenant state. It is only invoked for actionable events.
//
// Dispatch is at-least-once: a delivery whose handler failed, or whose claim
// expired before it was marked processed, is dispatched again on redelivery.
// Handlers must be idempotent per (tenant, gateway, resource, event type).
type EventHandler interface {
	HandleEvent(ctx context.Context, tenantID string, ev gateway.NormalizedEvent) error
}

type EventHandlerFunc func(ctx context.Context, tenantID string, ev gateway.NormalizedEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, tenantID string, ev gateway.NormalizedEvent) error {
	return f(ctx, tenantID, ev)
}
