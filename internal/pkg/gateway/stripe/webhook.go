package stripe

import (
	"encoding/json"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

var SubscriptionStatusMap = gateway.NewStatusMap(map[string]gateway.SubscriptionStatus{
	string(stripego.SubscriptionStatusIncomplete):        gateway.SubscriptionPending,
	string(stripego.SubscriptionStatusIncompleteExpired): gateway.SubscriptionCancelled,
	string(stripego.SubscriptionStatusTrialing):          gateway.SubscriptionAuthorized,
	string(stripego.SubscriptionStatusActive):            gateway.SubscriptionAuthorized,
	string(stripego.SubscriptionStatusPastDue):           gateway.SubscriptionAuthorized,
	string(stripego.SubscriptionStatusUnpaid):            gateway.SubscriptionPaused,
	string(stripego.SubscriptionStatusPaused):            gateway.SubscriptionPaused,
	string(stripego.SubscriptionStatusCanceled):          gateway.SubscriptionCancelled,
})

// PaymentStatusMap covers payment intent statuses. A failed attempt returns
// the intent to requires_payment_method, so failure is only derived from the
// payment_intent.payment_failed event type.
var PaymentStatusMap = gateway.NewStatusMap(map[string]gateway.PaymentStatus{
	string(stripego.PaymentIntentStatusRequiresPaymentMethod): gateway.PaymentPending,
	string(stripego.PaymentIntentStatusRequiresConfirmation):  gateway.PaymentPending,
	string(stripego.PaymentIntentStatusRequiresAction):        gateway.PaymentPending,
	string(stripego.PaymentIntentStatusProcessing):            gateway.PaymentPending,
	string(stripego.PaymentIntentStatusRequiresCapture):       gateway.PaymentPending,
	string(stripego.PaymentIntentStatusSucceeded):             gateway.PaymentApproved,
	string(stripego.PaymentIntentStatusCanceled):              gateway.PaymentCancelled,
})

var InvoiceStatusMap = gateway.NewStatusMap(map[string]gateway.PaymentStatus{
	string(stripego.InvoiceStatusDraft):         gateway.PaymentPending,
	string(stripego.InvoiceStatusOpen):          gateway.PaymentPending,
	string(stripego.InvoiceStatusPaid):          gateway.PaymentApproved,
	string(stripego.InvoiceStatusUncollectible): gateway.PaymentFailed,
	string(stripego.InvoiceStatusVoid):          gateway.PaymentCancelled,
})

// ValidateWebhook verifies the Stripe-Signature header over the raw body.
func (a *Adapter) ValidateWebhook(sig gateway.WebhookSignature) bool {
	secret := strings.TrimSpace(a.creds.WebhookSecret)
	if secret == "" || strings.TrimSpace(sig.Signature) == "" || len(sig.Payload) == 0 {
		return false
	}
	return webhook.ValidatePayload(sig.Payload, sig.Signature, secret) == nil
}

type event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode *bool  `json:"livemode"`
	Created  int64  `json:"created"`
	Data     struct {
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// NormalizeEvent maps {type, data: {object: {...}}} events.
func (a *Adapter) NormalizeEvent(payload []byte) gateway.NormalizedEvent {
	return normalize(payload, a.now())
}

func normalize(payload []byte, now time.Time) gateway.NormalizedEvent {
	var e event
	if len(payload) == 0 || json.Unmarshal(payload, &e) != nil || e.Data.Object == nil {
		return gateway.UnknownEvent(Name, payload, now)
	}

	obj := e.Data.Object
	resourceID := stringField(obj, "id")
	if resourceID == "" || e.Type == "" {
		ev := gateway.UnknownEvent(Name, payload, now)
		ev.Metadata.RawType = e.Type
		return ev
	}

	ev := gateway.NormalizedEvent{
		Gateway:    Name,
		ResourceID: resourceID,
		Data: map[string]any{
			"event_id": e.ID,
		},
		Metadata: gateway.EventMetadata{
			RawType:  e.Type,
			LiveMode: e.Livemode,
		},
		Raw:       append(json.RawMessage(nil), payload...),
		Timestamp: now,
	}
	if e.Created > 0 {
		ev.Data["created"] = time.Unix(e.Created, 0).UTC()
	}
	rawStatus := stringField(obj, "status")
	if rawStatus != "" {
		ev.Data["raw_status"] = rawStatus
	}

	switch {
	case strings.HasPrefix(e.Type, "customer.subscription."):
		ev.ResourceType = gateway.ResourceSubscription
		ev.Type = subscriptionEventType(e.Type, rawStatus)
		if status, ok := SubscriptionStatusMap.Internal(rawStatus); ok {
			ev.Data["status"] = string(status)
		} else if ev.Type == gateway.EventSubscriptionUpdated {
			ev.Metadata.RequiresStatusCheck = true
		}

	case strings.HasPrefix(e.Type, "invoice."):
		ev.ResourceType = gateway.ResourcePayment
		if sub := stringField(obj, "subscription"); sub != "" {
			ev.Metadata.IsSubscriptionPayment = true
			ev.Data["subscription_id"] = sub
		}
		copyAmount(ev.Data, obj, "amount_paid")
		switch e.Type {
		case "invoice.payment_succeeded", "invoice.paid":
			ev.Type = gateway.EventPaymentApproved
		case "invoice.payment_failed":
			ev.Type = gateway.EventPaymentFailed
		case "invoice.voided":
			ev.Type = gateway.EventPaymentCancelled
		default:
			status, ok := InvoiceStatusMap.Internal(rawStatus)
			if !ok {
				return unknownFrom(ev, payload, now)
			}
			ev.Type = gateway.EventTypeForPaymentStatus(status)
		}

	case strings.HasPrefix(e.Type, "payment_intent."):
		ev.ResourceType = gateway.ResourcePayment
		copyAmount(ev.Data, obj, "amount")
		switch e.Type {
		case "payment_intent.succeeded":
			ev.Type = gateway.EventPaymentApproved
		case "payment_intent.payment_failed":
			ev.Type = gateway.EventPaymentFailed
			if lastErr, ok := obj["last_payment_error"].(map[string]any); ok {
				ev.Data["rejection_code"] = stringField(lastErr, "code")
			}
		case "payment_intent.canceled":
			ev.Type = gateway.EventPaymentCancelled
		default:
			ev.Type = gateway.EventTypeForPaymentStatus(PaymentStatusMap.Resolve(rawStatus, gateway.PaymentPending))
		}

	case e.Type == "charge.refunded":
		ev.ResourceType = gateway.ResourcePayment
		ev.Type = gateway.EventPaymentRefunded
		copyAmount(ev.Data, obj, "amount_refunded")
		if pi := stringField(obj, "payment_intent"); pi != "" {
			ev.Data["payment_intent_id"] = pi
		}

	default:
		return unknownFrom(ev, payload, now)
	}
	return ev
}

func subscriptionEventType(eventType, rawStatus string) gateway.EventType {
	switch eventType {
	case "customer.subscription.deleted":
		return gateway.EventSubscriptionCancelled
	case "customer.subscription.paused":
		return gateway.EventSubscriptionPaused
	case "customer.subscription.resumed":
		return gateway.EventSubscriptionResumed
	}
	if status, ok := SubscriptionStatusMap.Internal(rawStatus); ok {
		return gateway.EventTypeForSubscriptionStatus(status)
	}
	return gateway.EventSubscriptionUpdated
}

func unknownFrom(ev gateway.NormalizedEvent, payload []byte, now time.Time) gateway.NormalizedEvent {
	unknown := gateway.UnknownEvent(Name, payload, now)
	unknown.ResourceID = ev.ResourceID
	unknown.Metadata.RawType = ev.Metadata.RawType
	return unknown
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// copyAmount keeps Stripe's minor-unit integer amounts as-is.
func copyAmount(dst, obj map[string]any, key string) {
	if v, ok := obj[key].(float64); ok {
		dst["amount_minor"] = int64(v)
	}
	if c := stringField(obj, "currency"); c != "" {
		dst["currency"] = strings.ToUpper(c)
	}
}
