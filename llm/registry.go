package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/agentrun/types"
)

// Resolver maps a model identifier to the provider that serves it.
type Resolver interface {
	Resolve(model string) (Provider, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(model string) (Provider, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(model string) (Provider, error) { return f(model) }

// Static resolves every model to p.
func Static(p Provider) Resolver {
	return ResolverFunc(func(string) (Provider, error) { return p, nil })
}

// Registry is a thread-safe Resolver. Lookup order is exact model name,
// longest registered prefix, then the fallback provider.
type Registry struct {
	models   map[string]Provider
	prefixes map[string]Provider
	fallback Provider
	mu       sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]Provider),
		prefixes: make(map[string]Provider),
	}
}

// Register binds an exact model name.
func (r *Registry) Register(model string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[model] = p
}

// RegisterPrefix binds every model name starting with prefix.
func (r *Registry) RegisterPrefix(prefix string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = p
}

// SetFallback sets the provider used when nothing else matches.
func (r *Registry) SetFallback(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// Resolve implements Resolver.
func (r *Registry) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.models[model]; ok {
		return p, nil
	}
	var (
		best    Provider
		bestLen int
	)
	for prefix, p := range r.prefixes {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
		}
	}
	if best != nil {
		return best, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, types.NewError(types.ErrModelNotFound, fmt.Sprintf("no provider registered for model %q", model))
}

// Models returns the sorted exact model names.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
