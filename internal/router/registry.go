package router

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/af-corp/ai-gateway/internal/provider"
	"github.com/af-corp/ai-gateway/internal/types"
)

// Registry is the catalog of configured services. Every enabled service has
// a ready provider client; disabling a service discards its client.
// Configs are stored and returned as clones so callers never share maps
// with the registry.
type Registry struct {
	mu       sync.RWMutex
	services map[string]types.ServiceConfig
	clients  map[string]provider.Client
	factory  provider.Factory
}

// NewRegistry creates an empty registry. A nil factory uses provider.New.
func NewRegistry(factory provider.Factory) *Registry {
	if factory == nil {
		factory = provider.New
	}
	return &Registry{
		services: make(map[string]types.ServiceConfig),
		clients:  make(map[string]provider.Client),
		factory:  factory,
	}
}

// Register adds a new service. On any error the registry is unchanged.
func (r *Registry) Register(cfg types.ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidService, err)
	}
	cfg = cfg.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[cfg.ID]; exists {
		return fmt.Errorf("register %s: %w", cfg.ID, ErrDuplicateID)
	}
	if err := r.checkFallback(cfg); err != nil {
		return fmt.Errorf("register %s: %w", cfg.ID, err)
	}

	var client provider.Client
	if cfg.Enabled {
		c, err := r.factory(cfg)
		if err != nil {
			return fmt.Errorf("register %s: build client: %w", cfg.ID, err)
		}
		client = c
	}

	r.services[cfg.ID] = cfg
	if client != nil {
		r.clients[cfg.ID] = client
	}
	return nil
}

// Update applies a partial update and returns the resulting config. An
// enabled service gets a freshly built client so endpoint or credential
// changes take effect on the next call.
func (r *Registry) Update(id string, u types.ServiceUpdate) (types.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.services[id]
	if !ok {
		return types.ServiceConfig{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	next := u.Apply(current)
	if err := next.Validate(); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidService, err)
	}
	if err := r.checkFallback(next); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("update %s: %w", id, err)
	}

	if err := r.commit(next); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("update %s: %w", id, err)
	}
	return next.Clone(), nil
}

// Remove deletes a service. Fallback references to it are left in place;
// failover treats them as absent.
func (r *Registry) Remove(id string) (types.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.services[id]
	if !ok {
		return types.ServiceConfig{}, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(r.services, id)
	delete(r.clients, id)
	return cfg, nil
}

func (r *Registry) Enable(id string) (types.ServiceConfig, error) {
	return r.setEnabled(id, true)
}

func (r *Registry) Disable(id string) (types.ServiceConfig, error) {
	return r.setEnabled(id, false)
}

func (r *Registry) setEnabled(id string, enabled bool) (types.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.services[id]
	if !ok {
		return types.ServiceConfig{}, fmt.Errorf("set enabled %s: %w", id, ErrNotFound)
	}
	if cfg.Enabled == enabled {
		return cfg.Clone(), nil
	}
	cfg.Enabled = enabled
	if err := r.commit(cfg); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("enable %s: %w", id, err)
	}
	return cfg.Clone(), nil
}

// commit stores cfg and brings its client in line with cfg.Enabled.
// Must be called with mu held.
func (r *Registry) commit(cfg types.ServiceConfig) error {
	if cfg.Enabled {
		client, err := r.factory(cfg)
		if err != nil {
			return fmt.Errorf("build client: %w", err)
		}
		r.clients[cfg.ID] = client
	} else {
		delete(r.clients, cfg.ID)
	}
	r.services[cfg.ID] = cfg
	return nil
}

// checkFallback validates cfg's fallback edge against the current catalog
// as if cfg were already stored. Must be called with mu held.
func (r *Registry) checkFallback(cfg types.ServiceConfig) error {
	if cfg.FallbackServiceID == cfg.ID {
		return ErrCyclicFallback
	}
	if target, ok := r.services[cfg.FallbackServiceID]; ok {
		if !target.Capability.CompatibleWith(cfg.Capability) {
			return fmt.Errorf("%w: %s is %s, %s is %s", ErrIncompatibleFallback,
				cfg.ID, cfg.Capability, target.ID, target.Capability)
		}
	}
	for _, s := range r.services {
		if s.ID != cfg.ID && s.FallbackServiceID == cfg.ID && !cfg.Capability.CompatibleWith(s.Capability) {
			return fmt.Errorf("%w: %s falls back to %s", ErrIncompatibleFallback, s.ID, cfg.ID)
		}
	}

	// The stored catalog is acyclic, so any new cycle runs through cfg.
	visited := map[string]bool{cfg.ID: true}
	next := cfg.FallbackServiceID
	for next != "" {
		if visited[next] {
			return ErrCyclicFallback
		}
		visited[next] = true
		s, ok := r.services[next]
		if !ok {
			return nil
		}
		next = s.FallbackServiceID
	}
	return nil
}

// Get returns a copy of the service config.
func (r *Registry) Get(id string) (types.ServiceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.services[id]
	if !ok {
		return types.ServiceConfig{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// Resolve returns the config and client of an enabled service as one
// consistent snapshot.
func (r *Registry) Resolve(id string) (types.ServiceConfig, provider.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.services[id]
	if !ok {
		return types.ServiceConfig{}, nil, fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	client, ok := r.clients[id]
	if !cfg.Enabled || !ok {
		return types.ServiceConfig{}, nil, fmt.Errorf("resolve %s: %w", id, ErrServiceDisabled)
	}
	return cfg.Clone(), client, nil
}

// List returns every service ordered by id.
func (r *Registry) List() []types.ServiceConfig {
	r.mu.RLock()
	out := make([]types.ServiceConfig, 0, len(r.services))
	for _, cfg := range r.services {
		out = append(out, cfg.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.ServiceConfig) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ListEnabled returns the enabled services of a capability, best first:
// priority descending, then id ascending.
func (r *Registry) ListEnabled(capability types.Capability) []types.ServiceConfig {
	r.mu.RLock()
	var out []types.ServiceConfig
	for _, cfg := range r.services {
		if cfg.Enabled && cfg.Capability == capability {
			out = append(out, cfg.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.ServiceConfig) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Clear removes every service.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.services)
	clear(r.clients)
}
