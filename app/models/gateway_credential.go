package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Payment gateway provider names stored in gateway tables.
const (
	GatewayProviderMercadoPago = "mercadopago"
	GatewayProviderStripe      = "stripe"
)

// GatewayCredential stores a tenant's credentials for one payment provider.
// Secrets are sealed before they reach the database.
type GatewayCredential struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TenantID         string     `gorm:"type:varchar(64);not null;index:ux_gateway_credentials_tenant_provider,unique,priority:1" json:"tenant_id" validate:"required,max=64"`
	Provider         string     `gorm:"type:varchar(20);not null;index:ux_gateway_credentials_tenant_provider,unique,priority:2" json:"provider" validate:"required,oneof=mercadopago stripe"`
	PublicKey        string     `gorm:"type:varchar(191);default:''" json:"public_key" validate:"max=191"`
	AccessTokenEnc   string     `gorm:"type:text" json:"-"`
	WebhookSecretEnc string     `gorm:"type:text" json:"-"`
	Sandbox          bool       `gorm:"default:false" json:"sandbox"`
	IsActive         bool       `gorm:"default:true;index" json:"is_active"`
	RotatedAt        *time.Time `gorm:"type:timestamp;default:null" json:"rotated_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *GatewayCredential) Validate() error {
	v := validator.New()

	return v.Struct(c)
}
