package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayGate/internal/pkg/billing"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway/mercadopago"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway/stripe"
	"github.com/ManuelReschke/PayGate/internal/pkg/metrics/counter"
)

const webhookTimeout = 15 * time.Second

// WebhookService is satisfied by *billing.Service.
type WebhookService interface {
	HandleWebhook(ctx context.Context, in billing.WebhookRequest) (*billing.WebhookOutcome, error)
}

// OutcomeCounter is satisfied by *counter.WebhookCounters.
type OutcomeCounter interface {
	Add(ctx context.Context, gatewayName, outcome string) error
}

// WebhookController receives provider webhooks for every tenant.
type WebhookController struct {
	svc      WebhookService
	counters OutcomeCounter
}

// NewWebhookController creates the controller; counters may be nil.
func NewWebhookController(svc WebhookService, counters OutcomeCounter) *WebhookController {
	return &WebhookController{svc: svc, counters: counters}
}

// HandleWebhook serves POST /webhooks/:provider/:tenant.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	provider := gateway.NormalizeName(c.Params("provider"))
	tenantID := strings.TrimSpace(c.Params("tenant"))
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "configuration_error", "message": "tenant is required"})
	}

	req := webhookRequestFor(c, provider)
	req.TenantID = tenantID

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	outcome, err := wc.svc.HandleWebhook(ctx, req)
	if err != nil {
		status, code := gatewayErrorStatus(err)
		if status >= fiber.StatusInternalServerError {
			log.Errorf("[WebhookController] %s webhook for tenant %s failed: %v", provider, tenantID, err)
			wc.count(ctx, provider, counter.OutcomeFailed)
		}
		return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
	}

	wc.count(ctx, outcome.Gateway, outcomeLabel(outcome))
	if !outcome.SignatureValid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	body := fiber.Map{"ok": true, "gateway": outcome.Gateway}
	switch {
	case outcome.Duplicate:
		body["duplicate"] = true
	case outcome.Ignored:
		body["ignored"] = true
	case outcome.Event != nil:
		body["event"] = outcome.Event.Type
		body["resourceId"] = outcome.Event.ResourceID
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

func (wc *WebhookController) count(ctx context.Context, gatewayName, outcome string) {
	if wc.counters == nil {
		return
	}
	if err := wc.counters.Add(ctx, gatewayName, outcome); err != nil {
		log.Debugf("[WebhookController] Counter update failed: %v", err)
	}
}

func outcomeLabel(o *billing.WebhookOutcome) string {
	switch {
	case o.Duplicate:
		return counter.OutcomeDuplicate
	case !o.SignatureValid:
		return counter.OutcomeInvalidSignature
	case o.Ignored:
		return counter.OutcomeIgnored
	default:
		return counter.OutcomeProcessed
	}
}

// webhookRequestFor extracts the signature material each provider sends.
func webhookRequestFor(c *fiber.Ctx, provider string) billing.WebhookRequest {
	req := billing.WebhookRequest{
		Provider: provider,
		Payload:  append([]byte(nil), c.BodyRaw()...),
	}
	switch provider {
	case mercadopago.Name:
		req.Signature = firstHeaderValue(c, "X-Signature")
		req.RequestID = firstHeaderValue(c, "X-Request-Id")
		req.DataID = firstQueryValue(c, "data.id", "id")
	case stripe.Name:
		req.Signature = firstHeaderValue(c, "Stripe-Signature")
	default:
		req.Signature = firstHeaderValue(c, "X-Signature", "X-Webhook-Signature")
		req.RequestID = firstHeaderValue(c, "X-Request-Id")
	}
	req.EventID = firstHeaderValue(c, "X-Webhook-Delivery", "X-Event-Id")
	return req
}
