// Package provider implements the model provider gateway: a uniform
// capability interface over heterogeneous AI text-generation backends.
package provider

import (
	"sort"
	"sync"

	"github.com/flowline-dev/flowline/internal/core"
)

// Registry manages registered model providers.
type Registry struct {
	providers map[string]core.ModelProvider
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]core.ModelProvider),
	}
}

// Register adds a provider to the registry, replacing any provider with
// the same name.
func (r *Registry) Register(p core.ModelProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (core.ModelProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &core.DomainError{
			Category: core.ErrCatNotFound,
			Code:     core.CodeUnknownProvider,
			Message:  "no provider registered under " + name,
		}
	}
	return p, nil
}

// List returns registered provider names in stable order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ core.ProviderRegistry = (*Registry)(nil)
