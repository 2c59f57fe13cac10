// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"
	"sync"
)

// Registry maps plugin ids to live instances in registration order.
//
// Registry is safe for concurrent use. The zero value is ready to use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds p under its id. It returns ErrAlreadyRegistered without
// changing the registry if the id is already present; the earlier
// registration wins.
func (r *Registry) Register(p Plugin) error {
	id := p.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins == nil {
		r.plugins = make(map[string]Plugin)
	}
	if _, exists := r.plugins[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	r.plugins[id] = p
	r.order = append(r.order, id)
	return nil
}

// Get returns the instance registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	return p, ok
}

// List returns all registered instances in registration order. The
// returned slice is a copy.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.plugins[id])
	}
	return list
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear removes every entry. Callers deactivate instances first.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.plugins)
	r.order = nil
}
