// Package resolve normalizes raw source identifiers to canonical identifiers
// through pluggable per-authority resolution providers, with run-scoped
// caching, per-authority batching, and bounded retry.
package resolve

import (
	"context"
	"sort"
	"sync"

	"github.com/path2target/transform-core/internal/core"
)

// Provider resolves raw identifier values against one authority. Providers
// are opaque collaborators behind this contract; the normalizer is
// authority-agnostic beyond selecting one.
type Provider interface {
	// Authority names the authority this provider serves.
	Authority() core.Authority

	// Resolve returns ranked candidates per raw value. A missing key or an
	// empty candidate list means the value did not resolve. An error means
	// the whole batch failed after the transport's retries were exhausted.
	Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error)
}

// Registry maps authorities to providers. Built at startup; the static table
// replaces runtime reflection over provider implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[core.Authority]Provider
}

// NewRegistry creates a registry with optional initial providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[core.Authority]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its authority.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Authority()] = p
}

// Get returns the provider for the given authority.
func (r *Registry) Get(authority core.Authority) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[authority]
	return p, ok
}

// Authorities returns the registered authority keys, sorted.
func (r *Registry) Authorities() []core.Authority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Authority, 0, len(r.providers))
	for a := range r.providers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Check verifies every authority has a registered provider. Called before
// any row processing begins; a missing provider is a configuration problem,
// not a per-row one.
func (r *Registry) Check(authorities []core.Authority) error {
	for _, a := range authorities {
		if _, ok := r.Get(a); !ok {
			return core.Errorf(core.CodeConfiguration, "no resolution provider registered for authority %q", a)
		}
	}
	return nil
}
