package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// DefaultCacheTTL bounds how long a resolved adapter is reused before its
// tenant credentials are fetched again.
const DefaultCacheTTL = 5 * time.Minute

type cacheKey struct {
	tenantID string
	provider string
}

type cacheEntry struct {
	instance  Gateway
	createdAt time.Time
}

// CacheStats is diagnostic only.
type CacheStats struct {
	Total   int   `json:"total"`
	Active  int   `json:"active"`
	Expired int   `json:"expired"`
	TTLMs   int64 `json:"ttlMs"`
}

// Factory resolves the adapter for a tenant and provider and reuses it for
// the cache TTL. Expired entries are replaced lazily on the next lookup.
type Factory struct {
	registry *Registry
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry

	// generation is bumped by every Evict so a constructor that started
	// before the eviction cannot store an adapter built from old credentials.
	generation uint64
}

type FactoryOption func(*Factory)

// WithTTL overrides DefaultCacheTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) FactoryOption {
	return func(f *Factory) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFactory(registry *Registry, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: registry,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		entries:  make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve returns the adapter for tenantID and providerName (empty selects
// the default provider).
//
// Two concurrent misses for the same key may both construct an instance; the
// last write wins. Instances hold no resources that need teardown, so the
// lock is never held across the constructor.
func (f *Factory) Resolve(ctx context.Context, tenantID, providerName string) (Gateway, error) {
	tenant := strings.TrimSpace(tenantID)
	if tenant == "" {
		return nil, &ConfigurationError{Reason: "tenant id is required"}
	}

	name, construct, err := f.registry.Lookup(providerName)
	if err != nil {
		return nil, err
	}

	key := cacheKey{tenantID: tenant, provider: name}
	f.mu.RLock()
	entry, ok := f.entries[key]
	gen := f.generation
	f.mu.RUnlock()
	if ok && f.now().Sub(entry.createdAt) < f.ttl {
		return entry.instance, nil
	}

	instance, err := construct(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("create %s gateway for tenant %s: %w", name, tenant, err)
	}

	f.mu.Lock()
	stale := f.generation != gen
	if !stale {
		f.entries[key] = cacheEntry{instance: instance, createdAt: f.now()}
	}
	f.mu.Unlock()

	if stale {
		log.Debugf("[GatewayFactory] Not caching %s gateway for tenant %s: evicted during construction", name, tenant)
		return instance, nil
	}
	log.Debugf("[GatewayFactory] Created %s gateway for tenant %s", name, tenant)
	return instance, nil
}

// Evict drops cached adapters, typically after credential rotation. An empty
// tenantID evicts everything; an empty providerName evicts every provider of
// the tenant. It returns the number of entries removed.
func (f *Factory) Evict(tenantID, providerName string) int {
	tenant := strings.TrimSpace(tenantID)
	provider := NormalizeName(providerName)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++

	if tenant == "" {
		n := len(f.entries)
		f.entries = make(map[cacheKey]cacheEntry)
		if n > 0 {
			log.Infof("[GatewayFactory] Evicted all %d cached gateways", n)
		}
		return n
	}

	if provider != "" {
		key := cacheKey{tenantID: tenant, provider: provider}
		if _, ok := f.entries[key]; !ok {
			return 0
		}
		delete(f.entries, key)
		log.Infof("[GatewayFactory] Evicted %s gateway for tenant %s", provider, tenant)
		return 1
	}

	n := 0
	for key := range f.entries {
		if key.tenantID == tenant {
			delete(f.entries, key)
			n++
		}
	}
	if n > 0 {
		log.Infof("[GatewayFactory] Evicted %d gateways for tenant %s", n, tenant)
	}
	return n
}

// IsAvailable is a best-effort probe: any resolution or connectivity failure
// reports false.
func (f *Factory) IsAvailable(ctx context.Context, tenantID, providerName string) bool {
	gw, err := f.Resolve(ctx, tenantID, providerName)
	if err != nil {
		log.Debugf("[GatewayFactory] Availability probe for tenant %s failed: %v", tenantID, err)
		return false
	}
	return gw.VerifyConnectivity(ctx).Success
}

func (f *Factory) Stats() CacheStats {
	now := f.now()
	f.mu.RLock()
	defer f.mu.RUnlock()

	stats := CacheStats{Total: len(f.entries), TTLMs: f.ttl.Milliseconds()}
	for _, entry := range f.entries {
		if now.Sub(entry.createdAt) < f.ttl {
			stats.Active++
		} else {
			stats.Expired++
		}
	}
	return stats
}

func (f *Factory) ListSupportedGateways() []string {
	return f.registry.Names()
}

func (f *Factory) DefaultGateway() string {
	return f.registry.Default()
}

func (f *Factory) TTL() time.Duration {
	return f.ttl
}
