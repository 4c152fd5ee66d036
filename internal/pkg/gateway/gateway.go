// Package gateway defines the provider-neutral payment gateway contract, the
// normalized webhook event model and the per-tenant adapter factory.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// Gateway is the capability set every provider adapter satisfies. Callers hold
// only this interface and never branch on the concrete adapter type.
type Gateway interface {
	Identify() Identity

	// CreateSubscription starts a new recurring agreement. It is not idempotent:
	// calling it twice creates two subscriptions at the provider.
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error)
	UpdateSubscriptionAmount(ctx context.Context, subscriptionID string, amount decimal.Decimal, currency string) (*SubscriptionDetails, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error)
	PauseSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetails, error)

	GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error)
	// GetAuthorizedPayment returns nil, nil when the provider has no concept of
	// payments pre-authorized under a subscription.
	GetAuthorizedPayment(ctx context.Context, authorizedPaymentID string) (*AuthorizedPaymentDetails, error)

	// ValidateWebhook reports whether the notification signature is authentic.
	// It performs no I/O and returns false for any malformed input.
	ValidateWebhook(sig WebhookSignature) bool
	// NormalizeEvent translates a raw webhook body. It performs no I/O and
	// degrades to an EventUnknown event instead of failing.
	NormalizeEvent(payload []byte) NormalizedEvent

	VerifyConnectivity(ctx context.Context) ConnectivityResult
}

// Identity describes which provider and environment an adapter talks to.
type Identity struct {
	Name        string `json:"name"`
	Sandbox     bool   `json:"sandbox"`
	Environment string `json:"environment"`
}

// NewIdentity fills the environment label from the sandbox flag.
func NewIdentity(name string, sandbox bool) Identity {
	label := EnvironmentProduction
	if sandbox {
		label = EnvironmentSandbox
	}
	return Identity{Name: name, Sandbox: sandbox, Environment: label}
}

// SubscriptionRequest carries the inputs of CreateSubscription.
type SubscriptionRequest struct {
	Reason            string          `json:"reason" validate:"required,max=255"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" validate:"required,iso4217"`
	PayerEmail        string          `json:"payer_email" validate:"required,email"`
	ReturnURL         string          `json:"return_url" validate:"required,url"`
	ExternalReference string          `json:"external_reference" validate:"max=255"`
}

// SubscriptionDetails is the provider-neutral view of a recurring agreement.
// Status is always canonical; Raw is kept for diagnostics only.
type SubscriptionDetails struct {
	ID                string             `json:"id"`
	Status            SubscriptionStatus `json:"status"`
	PayerEmail        string             `json:"payer_email"`
	Amount            decimal.Decimal    `json:"amount"`
	Currency          string             `json:"currency"`
	NextBillingDate   *time.Time         `json:"next_billing_date,omitempty"`
	ExternalReference string             `json:"external_reference,omitempty"`
	Raw               json.RawMessage    `json:"raw,omitempty"`
}

// SubscriptionResult is returned on creation and adds the hosted checkout URL
// the payer must visit to authorize the agreement.
type SubscriptionResult struct {
	SubscriptionDetails
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// PaymentDetails is the provider-neutral view of a single payment attempt.
type PaymentDetails struct {
	ID             string          `json:"id"`
	Status         PaymentStatus   `json:"status"`
	StatusDetail   string          `json:"status_detail,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PayerEmail     string          `json:"payer_email,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// AuthorizedPaymentDetails models a payment pre-authorized under a subscription.
type AuthorizedPaymentDetails struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Status         PaymentStatus   `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	DebitDate      *time.Time      `json:"debit_date,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// WebhookSignature holds the already-extracted inputs of ValidateWebhook.
// Payload is only consulted by providers that sign the raw request body.
type WebhookSignature struct {
	Signature string
	RequestID string
	DataID    string
	Payload   []byte
}

// ConnectivityResult is consumed by health-check tooling.
type ConnectivityResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NoAuthorizedPayments is embedded by adapters whose provider has no
// pre-authorized payment concept.
type NoAuthorizedPayments struct{}

func (NoAuthorizedPayments) GetAuthorizedPayment(context.Context, string) (*AuthorizedPaymentDetails, error) {
	return nil, nil
}
