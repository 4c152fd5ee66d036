// Package credentials resolves the per-tenant secrets payment adapters need.
package credentials

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound means the source has no credentials for the tenant/provider.
var ErrNotFound = errors.New("gateway credentials not found")

// Credentials are resolved once per adapter construction.
type Credentials struct {
	TenantID      string
	Provider      string
	AccessToken   string
	PublicKey     string
	WebhookSecret string
	Sandbox       bool
}

// Source looks up the credentials of a tenant for a provider.
type Source interface {
	Lookup(ctx context.Context, tenantID, provider string) (*Credentials, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, tenantID, provider string) (*Credentials, error)

func (f SourceFunc) Lookup(ctx context.Context, tenantID, provider string) (*Credentials, error) {
	return f(ctx, tenantID, provider)
}

type chain []Source

// Chain queries sources in order and returns the first answer that is not
// ErrNotFound.
func Chain(sources ...Source) Source {
	return chain(sources)
}

func (c chain) Lookup(ctx context.Context, tenantID, provider string) (*Credentials, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		creds, err := s.Lookup(ctx, tenantID, provider)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return creds, err
	}
	return nil, ErrNotFound
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
