// Package stripe is the Stripe gateway pending integration. Webhook
// validation and normalization work; every core billing operation fails with
// GATEWAY_NOT_IMPLEMENTED.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

const Name = "stripe"

type Adapter struct {
	gateway.NoAuthorizedPayments

	tenantID string
	creds    credentials.Credentials
	now      func() time.Time
}

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New resolves the tenant's Stripe credentials once. Missing credentials are
// tolerated: the stub still answers with GATEWAY_NOT_IMPLEMENTED and rejects
// every webhook.
func New(ctx context.Context, tenantID string, source credentials.Source, opts ...Option) (*Adapter, error) {
	a := &Adapter{tenantID: tenantID, now: time.Now}
	if source != nil {
		creds, err := source.Lookup(ctx, tenantID, Name)
		switch {
		case err == nil:
			a.creds = *creds
		case errors.Is(err, credentials.ErrNotFound):
		default:
			return nil, fmt.Errorf("resolve stripe credentials: %w", err)
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func NewConstructor(source credentials.Source, opts ...Option) gateway.Constructor {
	return func(ctx context.Context, tenantID string) (gateway.Gateway, error) {
		return New(ctx, tenantID, source, opts...)
	}
}

func (a *Adapter) Identify() gateway.Identity {
	sandbox := a.creds.Sandbox || strings.HasPrefix(a.creds.AccessToken, "sk_test_")
	return gateway.NewIdentity(Name, sandbox)
}

func notImplemented(operation string) error {
	return &gateway.NotImplementedError{Gateway: Name, Operation: operation}
}

func (a *Adapter) CreateSubscription(context.Context, gateway.SubscriptionRequest) (*gateway.SubscriptionResult, error) {
	return nil, notImplemented("create_subscription")
}

func (a *Adapter) GetSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, notImplemented("get_subscription")
}

func (a *Adapter) UpdateSubscriptionAmount(context.Context, string, decimal.Decimal, string) (*gateway.SubscriptionDetails, error) {
	return nil, notImplemented("update_subscription_amount")
}

func (a *Adapter) CancelSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, notImplemented("cancel_subscription")
}

func (a *Adapter) PauseSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, notImplemented("pause_subscription")
}

func (a *Adapter) ResumeSubscription(context.Context, string) (*gateway.SubscriptionDetails, error) {
	return nil, notImplemented("resume_subscription")
}

func (a *Adapter) GetPayment(context.Context, string) (*gateway.PaymentDetails, error) {
	return nil, notImplemented("get_payment")
}

func (a *Adapter) VerifyConnectivity(context.Context) gateway.ConnectivityResult {
	return gateway.ConnectivityResult{
		Success: false,
		Message: "stripe gateway is not yet available",
		Details: map[string]any{"code": gateway.CodeNotImplemented, "gateway": Name},
	}
}
