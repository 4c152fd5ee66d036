package credentials

import (
	"context"
	"strings"

	"github.com/ManuelReschke/PayGate/internal/pkg/env"
)

// EnvSource serves platform-level credentials shared by every tenant, read
// from <PROVIDER>_ACCESS_TOKEN, <PROVIDER>_WEBHOOK_SECRET,
// <PROVIDER>_PUBLIC_KEY and <PROVIDER>_SANDBOX.
type EnvSource struct{}

func (EnvSource) Lookup(_ context.Context, tenantID, provider string) (*Credentials, error) {
	p := normalizeProvider(provider)
	prefix := strings.ToUpper(p)

	token := strings.TrimSpace(env.GetEnv(prefix+"_ACCESS_TOKEN", ""))
	secret := strings.TrimSpace(env.GetEnv(prefix+"_WEBHOOK_SECRET", ""))
	if token == "" && secret == "" {
		return nil, ErrNotFound
	}

	return &Credentials{
		TenantID:      strings.TrimSpace(tenantID),
		Provider:      p,
		AccessToken:   token,
		PublicKey:     strings.TrimSpace(env.GetEnv(prefix+"_PUBLIC_KEY", "")),
		WebhookSecret: secret,
		Sandbox:       env.GetEnvBool(prefix+"_SANDBOX", false),
	}, nil
}
