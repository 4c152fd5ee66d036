package models

import "time"

// BillingSubscription mirrors the last canonical state of a provider
// subscription as reported through normalized webhook events.
type BillingSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	TenantID               string     `gorm:"type:varchar(64);not null;index:ux_billing_subscriptions_tenant_provider_subid,unique,priority:1" json:"tenant_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:idx_billing_subscriptions_provider_status,priority:1;index:ux_billing_subscriptions_tenant_provider_subid,unique,priority:2" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_tenant_provider_subid,unique,priority:3" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'pending';index:idx_billing_subscriptions_provider_status,priority:2" json:"status"`
	LastEventType          string     `gorm:"type:varchar(64);not null;default:''" json:"last_event_type"`
	LastEventAt            *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
