package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayGate/internal/pkg/credentials"
	"github.com/ManuelReschke/PayGate/internal/pkg/env"
	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

func tenantSource() credentials.Source {
	return credentials.SourceFunc(func(_ context.Context, tenantID, provider string) (*credentials.Credentials, error) {
		if tenantID != "tenant-a" || provider != "mercadopago" {
			return nil, credentials.ErrNotFound
		}
		return &credentials.Credentials{TenantID: tenantID, Provider: provider, AccessToken: "TEST-token", WebhookSecret: "secret"}, nil
	})
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(tenantSource(), Config{})

	assert.Equal(t, []string{"mercadopago", "stripe"}, r.Names())
	assert.Equal(t, "mercadopago", r.Default())
}

func TestNewRegistryCustomDefault(t *testing.T) {
	r := NewRegistry(tenantSource(), Config{DefaultGateway: "Stripe"})
	assert.Equal(t, "stripe", r.Default())
}

func TestFactoryResolvesRegisteredAdapters(t *testing.T) {
	f := gateway.NewFactory(NewRegistry(tenantSource(), Config{}))
	ctx := context.Background()

	mp, err := f.Resolve(ctx, "tenant-a", "")
	require.NoError(t, err)
	assert.Equal(t, gateway.NewIdentity("mercadopago", true), mp.Identify())

	st, err := f.Resolve(ctx, "tenant-a", "stripe")
	require.NoError(t, err)
	assert.Equal(t, "stripe", st.Identify().Name)

	_, err = f.Resolve(ctx, "tenant-b", "mercadopago")
	assert.ErrorIs(t, err, gateway.ErrConfiguration)

	_, err = f.Resolve(ctx, "tenant-a", "paypal")
	assert.ErrorIs(t, err, gateway.ErrUnsupportedGateway)
}

func TestConfigFromEnv(t *testing.T) {
	prev := env.Env
	t.Cleanup(func() { env.Env = prev })
	env.Env = map[string]string{
		"DEFAULT_PAYMENT_GATEWAY":       "stripe",
		"MERCADOPAGO_API_BASE_URL":      "http://localhost:9999",
		"MERCADOPAGO_WEBHOOK_TOLERANCE": "10m",
	}

	cfg := ConfigFromEnv()
	assert.Equal(t, "stripe", cfg.DefaultGateway)
	assert.Equal(t, "http://localhost:9999", cfg.MercadoPagoBaseURL)
	assert.Equal(t, "10m0s", cfg.MercadoPagoWebhookTolerance.String())
}
