package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnknownEvent(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	ev := UnknownEvent("mercadopago", []byte(`{"type":"merchant_order"}`), at)
	assert.Equal(t, EventUnknown, ev.Type)
	assert.Equal(t, ResourceUnknown, ev.ResourceType)
	assert.False(t, ev.IsActionable())
	assert.JSONEq(t, `{"type":"merchant_order"}`, string(ev.Raw))
	assert.Equal(t, at, ev.Timestamp)

	garbage := UnknownEvent("mercadopago", []byte("not json"), at)
	assert.Nil(t, garbage.Raw)
	assert.NotNil(t, garbage.Data)
}

func TestEventClassification(t *testing.T) {
	sub := NormalizedEvent{Type: EventSubscriptionCancelled}
	assert.True(t, sub.IsActionable())
	assert.True(t, sub.IsSubscriptionEvent())
	assert.False(t, sub.IsPaymentEvent())

	pay := NormalizedEvent{Type: EventPaymentRefunded, Metadata: EventMetadata{RequiresStatusCheck: true}}
	assert.True(t, pay.IsPaymentEvent())
	assert.True(t, pay.RequiresStatusCheck())

	assert.False(t, NormalizedEvent{}.IsActionable())
}

func TestEventTypeForStatus(t *testing.T) {
	for _, s := range SubscriptionStatuses {
		et := EventTypeForSubscriptionStatus(s)
		back, ok := SubscriptionStatusForEvent(et)
		assert.True(t, ok, s)
		assert.Equal(t, s, back)
	}
	assert.Equal(t, EventSubscriptionUpdated, EventTypeForSubscriptionStatus("bogus"))

	for _, s := range PaymentStatuses {
		assert.NotEqual(t, EventUnknown, EventTypeForPaymentStatus(s))
	}
	assert.Equal(t, EventPaymentPending, EventTypeForPaymentStatus("bogus"))

	resumed, ok := SubscriptionStatusForEvent(EventSubscriptionResumed)
	assert.True(t, ok)
	assert.Equal(t, SubscriptionAuthorized, resumed)

	_, ok = SubscriptionStatusForEvent(EventSubscriptionUpdated)
	assert.False(t, ok)
	_, ok = SubscriptionStatusForEvent(EventPaymentApproved)
	assert.False(t, ok)
}
