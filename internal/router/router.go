package router

import (
	"fmt"

	"github.com/af-corp/ai-gateway/internal/types"
)

// Router picks the service that handles a capability.
type Router struct {
	registry *Registry
}

func New(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Select returns the enabled service with the highest priority for the
// capability; ties go to the lowest id.
func (r *Router) Select(capability types.Capability) (string, error) {
	candidates := r.registry.ListEnabled(capability)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%s: %w", capability, ErrNoServiceAvailable)
	}
	return candidates[0].ID, nil
}
