package gateway

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of normalized webhook outcomes.
type EventType string

const (
	EventSubscriptionAuthorized EventType = "subscription.authorized"
	EventSubscriptionCancelled  EventType = "subscription.cancelled"
	EventSubscriptionPaused     EventType = "subscription.paused"
	EventSubscriptionResumed    EventType = "subscription.resumed"
	EventSubscriptionUpdated    EventType = "subscription.updated"
	EventSubscriptionPending    EventType = "subscription.pending"

	EventPaymentApproved  EventType = "payment.approved"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentPending   EventType = "payment.pending"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventPaymentCancelled EventType = "payment.cancelled"

	EventUnknown EventType = "unknown"
)

// ResourceType names the kind of provider resource an event refers to.
type ResourceType string

const (
	ResourceSubscription      ResourceType = "subscription"
	ResourcePayment           ResourceType = "payment"
	ResourceAuthorizedPayment ResourceType = "authorized_payment"
	ResourceUnknown           ResourceType = "unknown"
)

// EventMetadata carries out-of-band hints for the caller.
type EventMetadata struct {
	// RequiresStatusCheck means the webhook only announced a change; the
	// authoritative state must be fetched from the provider.
	RequiresStatusCheck   bool   `json:"requires_status_check"`
	IsSubscriptionPayment bool   `json:"is_subscription_payment"`
	Action                string `json:"action,omitempty"`
	RawType               string `json:"raw_type,omitempty"`
	LiveMode              *bool  `json:"live_mode,omitempty"`
}

// NormalizedEvent is the provider-agnostic representation of a webhook.
type NormalizedEvent struct {
	Type         EventType       `json:"type"`
	Gateway      string          `json:"gateway"`
	ResourceID   string          `json:"resource_id"`
	ResourceType ResourceType    `json:"resource_type"`
	Data         map[string]any  `json:"data,omitempty"`
	Metadata     EventMetadata   `json:"metadata"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// UnknownEvent builds the informational-only event used for anything a
// normalizer cannot interpret.
func UnknownEvent(gatewayName string, payload []byte, at time.Time) NormalizedEvent {
	ev := NormalizedEvent{
		Type:         EventUnknown,
		Gateway:      gatewayName,
		ResourceType: ResourceUnknown,
		Data:         map[string]any{},
		Timestamp:    at,
	}
	if json.Valid(payload) {
		ev.Raw = append(json.RawMessage(nil), payload...)
	}
	return ev
}

// IsActionable is false for unknown events: callers must not derive any
// state transition from them.
func (e NormalizedEvent) IsActionable() bool {
	return e.Type != EventUnknown && e.Type != ""
}

func (e NormalizedEvent) RequiresStatusCheck() bool {
	return e.Metadata.RequiresStatusCheck
}

func (e NormalizedEvent) IsSubscriptionEvent() bool {
	switch e.Type {
	case EventSubscriptionAuthorized, EventSubscriptionCancelled, EventSubscriptionPaused,
		EventSubscriptionResumed, EventSubscriptionUpdated, EventSubscriptionPending:
		return true
	}
	return false
}

func (e NormalizedEvent) IsPaymentEvent() bool {
	switch e.Type {
	case EventPaymentApproved, EventPaymentFailed, EventPaymentPending,
		EventPaymentRefunded, EventPaymentCancelled:
		return true
	}
	return false
}

var subscriptionEventTypes = map[SubscriptionStatus]EventType{
	SubscriptionPending:    EventSubscriptionPending,
	SubscriptionAuthorized: EventSubscriptionAuthorized,
	SubscriptionPaused:     EventSubscriptionPaused,
	SubscriptionCancelled:  EventSubscriptionCancelled,
}

var paymentEventTypes = map[PaymentStatus]EventType{
	PaymentPending:   EventPaymentPending,
	PaymentApproved:  EventPaymentApproved,
	PaymentFailed:    EventPaymentFailed,
	PaymentRefunded:  EventPaymentRefunded,
	PaymentCancelled: EventPaymentCancelled,
}

// EventTypeForSubscriptionStatus maps a canonical subscription status to its
// event type, falling back to EventSubscriptionUpdated.
func EventTypeForSubscriptionStatus(status SubscriptionStatus) EventType {
	if t, ok := subscriptionEventTypes[status]; ok {
		return t
	}
	return EventSubscriptionUpdated
}

// EventTypeForPaymentStatus maps a canonical payment status to its event type,
// falling back to EventPaymentPending.
func EventTypeForPaymentStatus(status PaymentStatus) EventType {
	if t, ok := paymentEventTypes[status]; ok {
		return t
	}
	return EventPaymentPending
}

// SubscriptionStatusForEvent is the inverse of EventTypeForSubscriptionStatus.
// Resumed maps back to authorized; updated carries no status.
func SubscriptionStatusForEvent(t EventType) (SubscriptionStatus, bool) {
	switch t {
	case EventSubscriptionResumed:
		return SubscriptionAuthorized, true
	case EventSubscriptionUpdated:
		return "", false
	}
	for status, et := range subscriptionEventTypes {
		if et == t {
			return status, true
		}
	}
	return "", false
}
