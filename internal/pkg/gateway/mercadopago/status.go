package mercadopago

import "github.com/ManuelReschke/PayGate/internal/pkg/gateway"

// SubscriptionStatusMap covers every preapproval status the API reports.
var SubscriptionStatusMap = gateway.NewStatusMap(map[string]gateway.SubscriptionStatus{
	"pending":    gateway.SubscriptionPending,
	"authorized": gateway.SubscriptionAuthorized,
	"paused":     gateway.SubscriptionPaused,
	"cancelled":  gateway.SubscriptionCancelled,
})

// PaymentStatusMap covers every payment status the API reports.
var PaymentStatusMap = gateway.NewStatusMap(map[string]gateway.PaymentStatus{
	"pending":      gateway.PaymentPending,
	"approved":     gateway.PaymentApproved,
	"authorized":   gateway.PaymentPending,
	"in_process":   gateway.PaymentPending,
	"in_mediation": gateway.PaymentPending,
	"rejected":     gateway.PaymentFailed,
	"cancelled":    gateway.PaymentCancelled,
	"refunded":     gateway.PaymentRefunded,
	"charged_back": gateway.PaymentRefunded,
})

// AuthorizedPaymentStatusMap covers the lifecycle of a recurring charge
// scheduled under a preapproval.
var AuthorizedPaymentStatusMap = gateway.NewStatusMap(map[string]gateway.PaymentStatus{
	"scheduled": gateway.PaymentPending,
	"recycling": gateway.PaymentPending,
	"processed": gateway.PaymentApproved,
	"cancelled": gateway.PaymentCancelled,
})
