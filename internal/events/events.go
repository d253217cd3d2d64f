// Package events carries gateway observability events to registered hooks.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/af-corp/ai-gateway/internal/types"
)

type Type string

const (
	RequestStarted   Type = "request.started"
	RequestCompleted Type = "request.completed"
	ServiceAdded     Type = "service.added"
	ServiceUpdated   Type = "service.updated"
	ServiceRemoved   Type = "service.removed"
	ServiceEnabled   Type = "service.enabled"
	ServiceDisabled  Type = "service.disabled"
	ConfigUpdated    Type = "config.updated"
)

// Event is one observability record. Request events fill the request
// fields; service events fill ServiceID and Enabled.
type Event struct {
	Type       Type             `json:"type"`
	Time       time.Time        `json:"time"`
	RequestID  string           `json:"request_id,omitempty"`
	CallerID   string           `json:"caller_id,omitempty"`
	Capability types.Capability `json:"capability,omitempty"`
	ServiceID  string           `json:"service_id,omitempty"`
	Enabled    bool             `json:"enabled,omitempty"`
	Success    bool             `json:"success,omitempty"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Error      string           `json:"error,omitempty"`
	Latency    time.Duration    `json:"latency,omitempty"`
	RetryCount int              `json:"retry_count,omitempty"`
}

// IsService reports whether the event describes a catalog change.
func (e Event) IsService() bool {
	switch e.Type {
	case ServiceAdded, ServiceUpdated, ServiceRemoved, ServiceEnabled, ServiceDisabled:
		return true
	default:
		return false
	}
}

// Hook receives events. Hooks run synchronously in publish order, so a hook
// that does I/O must bound it or hand it off.
type Hook func(ctx context.Context, e Event)

// Bus fans events out to hooks. A nil Bus drops everything.
type Bus struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.RUnlock()

	for _, h := range hooks {
		h(ctx, e)
	}
}
