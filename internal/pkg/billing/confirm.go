package billing

import (
	"context"
	"maps"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

// StatusConfirmer turns an announcement-only event into one backed by the
// provider's authoritative state. Retry and backoff are the implementation's
// choice; the service calls Confirm once per delivery.
type StatusConfirmer interface {
	Confirm(ctx context.Context, gw gateway.Gateway, ev gateway.NormalizedEvent) (gateway.NormalizedEvent, error)
}

// FetchConfirmer re-reads the resource once and derives the event type from
// its canonical status.
type FetchConfirmer struct{}

func (FetchConfirmer) Confirm(ctx context.Context, gw gateway.Gateway, ev gateway.NormalizedEvent) (gateway.NormalizedEvent, error) {
	out := ev
	out.Data = maps.Clone(ev.Data)
	if out.Data == nil {
		out.Data = map[string]any{}
	}

	switch ev.ResourceType {
	case gateway.ResourceSubscription:
		sub, err := gw.GetSubscription(ctx, ev.ResourceID)
		if err != nil {
			return ev, err
		}
		out.Type = gateway.EventTypeForSubscriptionStatus(sub.Status)
		out.Data["status"] = string(sub.Status)
		out.Data["amount"] = sub.Amount.String()
		out.Data["currency"] = sub.Currency
		if sub.ExternalReference != "" {
			out.Data["external_reference"] = sub.ExternalReference
		}

	case gateway.ResourcePayment:
		p, err := gw.GetPayment(ctx, ev.ResourceID)
		if err != nil {
			return ev, err
		}
		out.Type = gateway.EventTypeForPaymentStatus(p.Status)
		out.Data["status"] = string(p.Status)
		out.Data["amount"] = p.Amount.String()
		out.Data["currency"] = p.Currency
		if p.StatusDetail != "" {
			out.Data["status_detail"] = p.StatusDetail
		}
		if p.SubscriptionID != "" {
			out.Metadata.IsSubscriptionPayment = true
			out.Data["subscription_id"] = p.SubscriptionID
		}

	case gateway.ResourceAuthorizedPayment:
		ap, err := gw.GetAuthorizedPayment(ctx, ev.ResourceID)
		if err != nil {
			return ev, err
		}
		if ap == nil {
			// Provider has no such concept; nothing more authoritative to read.
			return ev, nil
		}
		out.Type = gateway.EventTypeForPaymentStatus(ap.Status)
		out.Data["status"] = string(ap.Status)
		out.Data["amount"] = ap.Amount.String()
		out.Data["currency"] = ap.Currency
		out.Data["subscription_id"] = ap.SubscriptionID
		if ap.PaymentID != "" {
			out.Data["payment_id"] = ap.PaymentID
		}

	default:
		return ev, nil
	}

	out.Metadata.RequiresStatusCheck = false
	return out, nil
}
