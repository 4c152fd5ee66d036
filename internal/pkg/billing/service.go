package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayGate/app/models"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

const errInvalidSignature = "invalid webhook signature"

// DefaultClaimTimeout is how long a delivery stays claimed by a request that
// never finished (crashed instance) before a redelivery may take it over.
const DefaultClaimTimeout = 2 * time.Minute

// Service ingests provider webhooks for any tenant and gateway.
type Service struct {
	repo         Repository
	gateways     GatewayResolver
	confirmer    StatusConfirmer
	handler      EventHandler
	claimTimeout time.Duration
	now          func() time.Time
}

type ServiceOption func(*Service)

// WithStatusConfirmer enables confirmation of announcement-only events.
func WithStatusConfirmer(c StatusConfirmer) ServiceOption {
	return func(s *Service) {
		s.confirmer = c
	}
}

func WithEventHandler(h EventHandler) ServiceOption {
	return func(s *Service) {
		s.handler = h
	}
}

// WithClaimTimeout overrides DefaultClaimTimeout. Non-positive values are ignored.
func WithClaimTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.claimTimeout = d
		}
	}
}

// NewService creates a webhook service from an injected repository.
func NewService(repo Repository, gateways GatewayResolver, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, gateways: gateways, claimTimeout: DefaultClaimTimeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a webhook service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateways GatewayResolver, opts ...ServiceOption) *Service {
	return NewService(NewRepository(db), gateways, opts...)
}

// HandleWebhook resolves the tenant gateway, validates and normalizes the
// delivery, records it idempotently and dispatches actionable events.
//
// Deliveries are scoped to the tenant: the same provider event id seen by two
// tenants is two deliveries. Only the request holding the claim on a delivery
// processes it; concurrent redeliveries report Duplicate.
//
// An invalid signature is an outcome, not an error. Errors are returned for
// configuration problems, persistence failures and failed confirmation or
// dispatch; in the latter cases the delivery stays eligible for redelivery.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookRequest) (*WebhookOutcome, error) {
	tenantID := strings.TrimSpace(in.TenantID)
	gw, err := s.gateways.Resolve(ctx, tenantID, in.Provider)
	if err != nil {
		return nil, err
	}
	name := gw.Identify().Name

	signatureValid := gw.ValidateWebhook(gateway.WebhookSignature{
		Signature: in.Signature,
		RequestID: in.RequestID,
		DataID:    in.DataID,
		Payload:   in.Payload,
	})
	ev := gw.NormalizeEvent(in.Payload)

	claimedAt := s.now()
	record := &models.BillingWebhookEvent{
		TenantID:        tenantID,
		Provider:        name,
		ProviderEventID: deliveryID(in, ev),
		EventType:       string(ev.Type),
		ResourceID:      ev.ResourceID,
		PayloadJSON:     string(in.Payload),
		SignatureValid:  signatureValid,
		ClaimedAt:       &claimedAt,
	}
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	outcome := &WebhookOutcome{
		WebhookEventID: stored.ID,
		Gateway:        name,
		SignatureValid: signatureValid,
	}
	if !created {
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			outcome.Duplicate = true
			return outcome, nil
		}
		if !signatureValid {
			// An unsigned copy never touches a delivery recorded before it.
			log.Warnf("[Billing] Rejected %s webhook for tenant %s: invalid signature", name, tenantID)
			return outcome, nil
		}
		claimed, err := s.repo.ClaimWebhookEvent(ctx, stored.ID, claimedAt, claimedAt.Add(-s.claimTimeout))
		if err != nil {
			return nil, fmt.Errorf("claim webhook event %d: %w", stored.ID, err)
		}
		if !claimed {
			log.Debugf("[Billing] %s delivery %s for tenant %s is being processed elsewhere", name, record.ProviderEventID, tenantID)
			outcome.Duplicate = true
			outcome.InProgress = true
			return outcome, nil
		}
		if !stored.SignatureValid {
			// The first copy on record failed validation; keep the authentic one.
			if err := s.repo.ReplaceWebhookDelivery(ctx, stored.ID, record); err != nil {
				s.markProcessed(ctx, stored.ID, err)
				return outcome, fmt.Errorf("replace webhook event %d: %w", stored.ID, err)
			}
		}
	}

	if !signatureValid {
		log.Warnf("[Billing] Rejected %s webhook for tenant %s: invalid signature", name, tenantID)
		s.markProcessed(ctx, stored.ID, errors.New(errInvalidSignature))
		return outcome, nil
	}

	if !ev.IsActionable() {
		log.Debugf("[Billing] Ignoring unknown %s webhook type %q for tenant %s", name, ev.Metadata.RawType, tenantID)
		outcome.Ignored = true
		outcome.Event = &ev
		s.markProcessed(ctx, stored.ID, nil)
		return outcome, nil
	}

	if ev.RequiresStatusCheck() && s.confirmer != nil {
		confirmed, err := s.confirmer.Confirm(ctx, gw, ev)
		if err != nil {
			s.markProcessed(ctx, stored.ID, err)
			return outcome, fmt.Errorf("confirm %s %s %s: %w", name, ev.ResourceType, ev.ResourceID, err)
		}
		ev = confirmed
		outcome.Confirmed = !ev.RequiresStatusCheck()
	}
	outcome.Event = &ev

	if err := s.syncSubscription(ctx, tenantID, name, ev); err != nil {
		s.markProcessed(ctx, stored.ID, err)
		return outcome, fmt.Errorf("sync subscription %s: %w", ev.ResourceID, err)
	}

	if s.handler != nil {
		if err := s.handler.HandleEvent(ctx, tenantID, ev); err != nil {
			s.markProcessed(ctx, stored.ID, err)
			return outcome, fmt.Errorf("dispatch %s: %w", ev.Type, err)
		}
	}

	s.markProcessed(ctx, stored.ID, nil)
	log.Infof("[Billing] Processed %s %s for tenant %s (resource %s)", name, ev.Type, tenantID, ev.ResourceID)
	return outcome, nil
}

// syncSubscription mirrors the canonical subscription state. Events whose
// status still needs confirmation are not trusted.
func (s *Service) syncSubscription(ctx context.Context, tenantID, provider string, ev gateway.NormalizedEvent) error {
	if !ev.IsSubscriptionEvent() || ev.RequiresStatusCheck() {
		return nil
	}
	status, ok := gateway.SubscriptionStatusForEvent(ev.Type)
	if !ok {
		return nil
	}
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return s.repo.UpsertSubscription(ctx, &models.BillingSubscription{
		TenantID:               tenantID,
		Provider:               provider,
		ProviderSubscriptionID: ev.ResourceID,
		Status:                 string(status),
		LastEventType:          string(ev.Type),
		LastEventAt:            &at,
		RawPayloadJSON:         string(ev.Raw),
	})
}

func (s *Service) markProcessed(ctx context.Context, webhookEventID uint, processingErr error) {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg); err != nil {
		log.Errorf("[Billing] Failed to mark webhook event %d processed: %v", webhookEventID, err)
	}
}

// deliveryID prefers the transport-provided id, then the provider's own
// notification id, then a payload hash.
func deliveryID(in WebhookRequest, ev gateway.NormalizedEvent) string {
	if id := strings.TrimSpace(in.EventID); id != "" {
		return id
	}
	for _, key := range []string{"notification_id", "event_id"} {
		if id, ok := ev.Data[key].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	sum := sha256.Sum256(in.Payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
