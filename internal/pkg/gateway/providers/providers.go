// Package providers wires the concrete adapters into a gateway registry.
package providers

import (
	"time"

	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/env"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway/mercadopago"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway/stripe"
)

const DefaultGateway = mercadopago.Name

// Config carries adapter options read from the environment.
type Config struct {
	DefaultGateway              string
	MercadoPagoBaseURL          string
	MercadoPagoWebhookTolerance time.Duration
}

// ConfigFromEnv reads DEFAULT_PAYMENT_GATEWAY, MERCADOPAGO_API_BASE_URL and
// MERCADOPAGO_WEBHOOK_TOLERANCE.
func ConfigFromEnv() Config {
	return Config{
		DefaultGateway:              env.GetEnv("DEFAULT_PAYMENT_GATEWAY", DefaultGateway),
		MercadoPagoBaseURL:          env.GetEnv("MERCADOPAGO_API_BASE_URL", mercadopago.DefaultAPIBaseURL),
		MercadoPagoWebhookTolerance: env.GetEnvDuration("MERCADOPAGO_WEBHOOK_TOLERANCE", 0),
	}
}

// NewRegistry registers every supported provider against one credential source.
func NewRegistry(source credentials.Source, cfg Config) *gateway.Registry {
	def := cfg.DefaultGateway
	if def == "" {
		def = DefaultGateway
	}

	r := gateway.NewRegistry(def)
	r.Register(mercadopago.Name, mercadopago.NewConstructor(source,
		mercadopago.WithBaseURL(cfg.MercadoPagoBaseURL),
		mercadopago.WithSignatureTolerance(cfg.MercadoPagoWebhookTolerance),
	))
	r.Register(stripe.Name, stripe.NewConstructor(source))
	return r
}
