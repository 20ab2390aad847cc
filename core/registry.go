package core

import (
	"fmt"

	"pkt.systems/canopy/schema"
)

// Registry holds providers in registration order. Order is meaningful: it
// fixes the order of the synthetic roots in every forest.
type Registry struct {
	order  []Provider
	byName map[schema.ProviderName]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers []Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, schema.ErrNoProviders
	}
	reg := &Registry{byName: make(map[schema.ProviderName]Provider, len(providers))}
	for _, p := range providers {
		info := p.Describe()
		name, err := schema.NormalizeProviderName(string(info.Name))
		if err != nil {
			return nil, err
		}
		if name != info.Name {
			return nil, fmt.Errorf("%w: %q", schema.ErrInvalidProvider, info.Name)
		}
		if _, ok := reg.byName[name]; ok {
			return nil, fmt.Errorf("%w: %q", schema.ErrProviderConflict, name)
		}
		reg.byName[name] = p
		reg.order = append(reg.order, p)
	}
	return reg, nil
}

// Lookup resolves a provider by name.
func (r *Registry) Lookup(name schema.ProviderName) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrProviderNotFound, name)
	}
	return p, nil
}

// Ordered returns providers in registration order.
func (r *Registry) Ordered() []Provider {
	out := make([]Provider, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered providers.
func (r *Registry) Len() int {
	return len(r.order)
}
