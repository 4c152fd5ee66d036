// Package mercadopago implements the gateway contract on top of the Mercado
// Pago REST API: preapprovals for recurring billing, payments and the
// authorized payments charged under a preapproval.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

const Name = "mercadopago"

// Adapter is safe for concurrent use. No lock is held across HTTP calls.
type Adapter struct {
	tenantID   string
	creds      credentials.Credentials
	baseURL    string
	httpClient *http.Client
	tolerance  time.Duration
	now        func() time.Time

	mu  sync.Mutex
	api *client
}

type Option func(*Adapter)

func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(baseURL) != "" {
			a.baseURL = strings.TrimSpace(baseURL)
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = c
	}
}

// WithSignatureTolerance rejects webhooks whose signed timestamp is further
// than d from now. Zero disables the check.
func WithSignatureTolerance(d time.Duration) Option {
	return func(a *Adapter) {
		a.tolerance = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New resolves the tenant's credentials once and returns a ready adapter.
// The HTTP client itself is created on first use.
func New(ctx context.Context, tenantID string, source credentials.Source, opts ...Option) (*Adapter, error) {
	if source == nil {
		return nil, &gateway.ConfigurationError{Reason: "mercadopago credential source is not configured"}
	}
	creds, err := source.Lookup(ctx, tenantID, Name)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, &gateway.ConfigurationError{Reason: "no mercadopago credentials for tenant " + tenantID, Err: err}
		}
		return nil, fmt.Errorf("resolve mercadopago credentials: %w", err)
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return nil, &gateway.ConfigurationError{Reason: "mercadopago access token is empty for tenant " + tenantID}
	}

	a := &Adapter{
		tenantID: tenantID,
		creds:    *creds,
		baseURL:  DefaultAPIBaseURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewConstructor binds New to a credential source for the gateway registry.
func NewConstructor(source credentials.Source, opts ...Option) gateway.Constructor {
	return func(ctx context.Context, tenantID string) (gateway.Gateway, error) {
		return New(ctx, tenantID, source, opts...)
	}
}

func (a *Adapter) client() *client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.api == nil {
		a.api = newClient(a.baseURL, a.creds.AccessToken, a.httpClient)
	}
	return a.api
}

// Reset drops the underlying client; the next operation builds a new one.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.api = nil
	a.mu.Unlock()
}

func (a *Adapter) Identify() gateway.Identity {
	return gateway.NewIdentity(Name, a.isSandbox())
}

func (a *Adapter) isSandbox() bool {
	return a.creds.Sandbox || strings.HasPrefix(a.creds.AccessToken, "TEST-")
}

type autoRecurringRequest struct {
	Frequency         int     `json:"frequency,omitempty"`
	FrequencyType     string  `json:"frequency_type,omitempty"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

type preapprovalRequest struct {
	Reason            string                `json:"reason"`
	ExternalReference string                `json:"external_reference,omitempty"`
	PayerEmail        string                `json:"payer_email"`
	BackURL           string                `json:"back_url"`
	AutoRecurring     *autoRecurringRequest `json:"auto_recurring"`
	Status            string                `json:"status"`
}

type preapprovalUpdate struct {
	Status        string                `json:"status,omitempty"`
	AutoRecurring *autoRecurringRequest `json:"auto_recurring,omitempty"`
}

type preapprovalResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	NextPaymentDate   string `json:"next_payment_date"`
	AutoRecurring     struct {
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		CurrencyID        string          `json:"currency_id"`
	} `json:"auto_recurring"`
}

func (a *Adapter) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.SubscriptionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := preapprovalRequest{
		Reason:            req.Reason,
		ExternalReference: req.ExternalReference,
		PayerEmail:        strings.TrimSpace(req.PayerEmail),
		BackURL:           req.ReturnURL,
		AutoRecurring: &autoRecurringRequest{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: req.Amount.InexactFloat64(),
			CurrencyID:        strings.ToUpper(req.Currency),
		},
		Status: "pending",
	}

	var out preapprovalResponse
	raw, err := a.client().do(ctx, "create_subscription", http.MethodPost, "/preapproval", body, &out)
	if err != nil {
		return nil, err
	}

	checkout := out.InitPoint
	if a.isSandbox() && out.SandboxInitPoint != "" {
		checkout = out.SandboxInitPoint
	}
	log.Infof("[MercadoPago] Created preapproval %s for tenant %s", out.ID, a.tenantID)
	return &gateway.SubscriptionResult{
		SubscriptionDetails: a.subscriptionDetails(out, raw),
		CheckoutURL:         checkout,
	}, nil
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionDetails, error) {
	id, err := requireID("subscription", subscriptionID)
	if err != nil {
		return nil, err
	}
	var out preapprovalResponse
	raw, err := a.client().do(ctx, "get_subscription", http.MethodGet, "/preapproval/"+id, nil, &out)
	if err != nil {
		return nil, err
	}
	details := a.subscriptionDetails(out, raw)
	return &details, nil
}

func (a *Adapter) UpdateSubscriptionAmount(ctx context.Context, subscriptionID string, amount decimal.Decimal, currency string) (*gateway.SubscriptionDetails, error) {
	if err := gateway.ValidateAmount(amount, currency); err != nil {
		return nil, err
	}
	return a.updatePreapproval(ctx, "update_subscription_amount", subscriptionID, preapprovalUpdate{
		AutoRecurring: &autoRecurringRequest{
			TransactionAmount: amount.InexactFloat64(),
			CurrencyID:        strings.ToUpper(strings.TrimSpace(currency)),
		},
	})
}

func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionDetails, error) {
	return a.updatePreapproval(ctx, "cancel_subscription", subscriptionID, preapprovalUpdate{Status: "cancelled"})
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionDetails, error) {
	return a.updatePreapproval(ctx, "pause_subscription", subscriptionID, preapprovalUpdate{Status: "paused"})
}

func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionDetails, error) {
	return a.updatePreapproval(ctx, "resume_subscription", subscriptionID, preapprovalUpdate{Status: "authorized"})
}

// updatePreapproval leaves transition rules to the provider: an invalid
// transition comes back as a ProviderError matching gateway.ErrConflict.
func (a *Adapter) updatePreapproval(ctx context.Context, operation, subscriptionID string, body preapprovalUpdate) (*gateway.SubscriptionDetails, error) {
	id, err := requireID("subscription", subscriptionID)
	if err != nil {
		return nil, err
	}
	var out preapprovalResponse
	raw, err := a.client().do(ctx, operation, http.MethodPut, "/preapproval/"+id, body, &out)
	if err != nil {
		return nil, markTransitionConflict(err)
	}
	details := a.subscriptionDetails(out, raw)
	return &details, nil
}

// Mercado Pago rejects transitions out of a terminal preapproval with a 400.
var transitionRejections = []string{
	"cancelled preapproval",
	"canceled preapproval",
	"can not modify",
	"cannot modify",
}

func markTransitionConflict(err error) error {
	var pe *gateway.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		return err
	}
	msg := strings.ToLower(pe.Message)
	for _, needle := range transitionRejections {
		if strings.Contains(msg, needle) {
			pe.Conflict = true
			break
		}
	}
	return err
}

func (a *Adapter) subscriptionDetails(out preapprovalResponse, raw json.RawMessage) gateway.SubscriptionDetails {
	status, ok := SubscriptionStatusMap.Internal(out.Status)
	if !ok {
		log.Warnf("[MercadoPago] Unmapped preapproval status %q for %s, treating as pending", out.Status, out.ID)
		status = gateway.SubscriptionPending
	}
	return gateway.SubscriptionDetails{
		ID:                out.ID,
		Status:            status,
		PayerEmail:        out.PayerEmail,
		Amount:            out.AutoRecurring.TransactionAmount,
		Currency:          out.AutoRecurring.CurrencyID,
		NextBillingDate:   parseTime(out.NextPaymentDate),
		ExternalReference: out.ExternalReference,
		Raw:               raw,
	}
}

type paymentResponse struct {
	ID                flexID          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateApproved      string          `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	Metadata struct {
		PreapprovalID string `json:"preapproval_id"`
	} `json:"metadata"`
}

func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	id, err := requireID("payment", paymentID)
	if err != nil {
		return nil, err
	}
	var out paymentResponse
	raw, err := a.client().do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+id, nil, &out)
	if err != nil {
		return nil, err
	}
	return &gateway.PaymentDetails{
		ID:             string(out.ID),
		Status:         a.paymentStatus(out.Status, string(out.ID)),
		StatusDetail:   out.StatusDetail,
		Amount:         out.TransactionAmount,
		Currency:       out.CurrencyID,
		PayerEmail:     out.Payer.Email,
		SubscriptionID: out.Metadata.PreapprovalID,
		ApprovedAt:     parseTime(out.DateApproved),
		Raw:            raw,
	}, nil
}

type authorizedPaymentResponse struct {
	ID                flexID          `json:"id"`
	PreapprovalID     string          `json:"preapproval_id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DebitDate         string          `json:"debit_date"`
	Payment           *struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

func (a *Adapter) GetAuthorizedPayment(ctx context.Context, authorizedPaymentID string) (*gateway.AuthorizedPaymentDetails, error) {
	id, err := requireID("authorized payment", authorizedPaymentID)
	if err != nil {
		return nil, err
	}
	var out authorizedPaymentResponse
	raw, err := a.client().do(ctx, "get_authorized_payment", http.MethodGet, "/authorized_payments/"+id, nil, &out)
	if err != nil {
		return nil, err
	}

	details := &gateway.AuthorizedPaymentDetails{
		ID:             string(out.ID),
		SubscriptionID: out.PreapprovalID,
		Amount:         out.TransactionAmount,
		Currency:       out.CurrencyID,
		DebitDate:      parseTime(out.DebitDate),
		Raw:            raw,
	}
	// The charged payment is authoritative once it exists.
	if out.Payment != nil && out.Payment.Status != "" {
		details.PaymentID = string(out.Payment.ID)
		details.Status = a.paymentStatus(out.Payment.Status, details.PaymentID)
	} else {
		details.Status = AuthorizedPaymentStatusMap.Resolve(out.Status, gateway.PaymentPending)
	}
	return details, nil
}

func (a *Adapter) paymentStatus(raw, id string) gateway.PaymentStatus {
	status, ok := PaymentStatusMap.Internal(raw)
	if !ok {
		log.Warnf("[MercadoPago] Unmapped payment status %q for %s, treating as pending", raw, id)
		return gateway.PaymentPending
	}
	return status
}

func (a *Adapter) VerifyConnectivity(ctx context.Context) gateway.ConnectivityResult {
	var me struct {
		ID       flexID `json:"id"`
		Nickname string `json:"nickname"`
		SiteID   string `json:"site_id"`
	}
	if _, err := a.client().do(ctx, "verify_connectivity", http.MethodGet, "/users/me", nil, &me); err != nil {
		return gateway.ConnectivityResult{
			Success: false,
			Message: err.Error(),
			Details: map[string]any{"tenant_id": a.tenantID, "sandbox": a.isSandbox()},
		}
	}
	return gateway.ConnectivityResult{
		Success: true,
		Message: "connected to mercadopago",
		Details: map[string]any{
			"tenant_id": a.tenantID,
			"user_id":   string(me.ID),
			"nickname":  me.Nickname,
			"site_id":   me.SiteID,
			"sandbox":   a.isSandbox(),
		},
	}
}

func requireID(kind, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", &gateway.ConfigurationError{Reason: kind + " id is required"}
	}
	return url.PathEscape(trimmed), nil
}

// parseTime accepts the RFC 3339 variants the API emits and returns nil for
// empty or unparseable values.
func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
