package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Constructor builds a ready-to-use adapter for a tenant. Credentials are
// resolved once inside the constructor, not per call.
type Constructor func(ctx context.Context, tenantID string) (Gateway, error)

// Registry is the static table of provider name to adapter constructor.
// It is populated at startup and read-only afterwards.
type Registry struct {
	constructors map[string]Constructor
	defaultName  string
}

func NewRegistry(defaultName string) *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		defaultName:  NormalizeName(defaultName),
	}
}

// Register adds a provider. Registering the same name twice panics since it
// can only be a wiring mistake.
func (r *Registry) Register(name string, c Constructor) {
	n := NormalizeName(name)
	if n == "" || c == nil {
		panic("gateway: Register requires a name and a constructor")
	}
	if _, exists := r.constructors[n]; exists {
		panic(fmt.Sprintf("gateway: provider %q registered twice", n))
	}
	r.constructors[n] = c
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Default() string {
	return r.defaultName
}

// Lookup resolves a provider name, empty meaning the default provider.
func (r *Registry) Lookup(name string) (string, Constructor, error) {
	n := NormalizeName(name)
	if n == "" {
		n = r.defaultName
	}
	c, ok := r.constructors[n]
	if !ok {
		return n, nil, &UnsupportedGatewayError{Gateway: n, Supported: r.Names()}
	}
	return n, c, nil
}

// NormalizeName lowercases and trims a provider name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
