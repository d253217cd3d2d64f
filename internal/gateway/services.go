package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/af-corp/ai-gateway/internal/events"
	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

// Seed registers services in order, skipping the ones the registry
// rejects. It returns the joined registration errors.
func (g *Gateway) Seed(ctx context.Context, services []types.ServiceConfig) error {
	var errs []error
	for _, svc := range services {
		if err := g.AddService(ctx, svc); err != nil {
			slog.Warn("skipping service", "service", svc, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) AddService(ctx context.Context, svc types.ServiceConfig) error {
	if err := g.registry.Register(svc); err != nil {
		return err
	}
	g.serviceEvent(ctx, events.ServiceAdded, svc)
	return nil
}

func (g *Gateway) UpdateService(ctx context.Context, id string, u types.ServiceUpdate) (types.ServiceConfig, error) {
	svc, err := g.registry.Update(id, u)
	if err != nil {
		return types.ServiceConfig{}, err
	}
	g.health.Forget(id)
	g.serviceEvent(ctx, events.ServiceUpdated, svc)
	return svc, nil
}

// RemoveService deletes a service. Fallback references to it are left
// dangling and are skipped at failover time. Its metrics are kept.
func (g *Gateway) RemoveService(ctx context.Context, id string) error {
	svc, err := g.registry.Remove(id)
	if err != nil {
		return err
	}
	g.health.Forget(id)
	g.serviceEvent(ctx, events.ServiceRemoved, svc)
	return nil
}

func (g *Gateway) EnableService(ctx context.Context, id string) (types.ServiceConfig, error) {
	svc, err := g.registry.Enable(id)
	if err != nil {
		return types.ServiceConfig{}, err
	}
	g.health.Forget(id)
	g.serviceEvent(ctx, events.ServiceEnabled, svc)
	return svc, nil
}

func (g *Gateway) DisableService(ctx context.Context, id string) (types.ServiceConfig, error) {
	svc, err := g.registry.Disable(id)
	if err != nil {
		return types.ServiceConfig{}, err
	}
	g.serviceEvent(ctx, events.ServiceDisabled, svc)
	return svc, nil
}

func (g *Gateway) serviceEvent(ctx context.Context, t events.Type, svc types.ServiceConfig) {
	g.bus.Publish(ctx, events.Event{Type: t, ServiceID: svc.ID, Enabled: svc.Enabled})
}

func (g *Gateway) GetService(id string) (types.ServiceConfig, error) {
	return g.registry.Get(id)
}

// ListServices returns every registered service ordered by id.
func (g *Gateway) ListServices() []types.ServiceConfig {
	return g.registry.List()
}

// ListEnabledServices returns the enabled services of capability in
// routing order.
func (g *Gateway) ListEnabledServices(capability types.Capability) []types.ServiceConfig {
	return g.registry.ListEnabled(capability)
}

func (g *Gateway) GetMetrics() telemetry.GatewayMetrics {
	return g.collector.Global()
}

// GetServiceMetrics returns the metrics attributed to id. A registered
// service that has served nothing yet reports zero values. Ids without
// metrics or registration, other than "cache" and "gateway", are not found.
func (g *Gateway) GetServiceMetrics(id string) (telemetry.ServiceMetrics, error) {
	if m, ok := g.collector.Service(id); ok {
		return m, nil
	}
	if _, err := g.registry.Get(id); err == nil || id == types.CacheServiceID || id == types.GatewayServiceID {
		return telemetry.ServiceMetrics{ServiceID: id}, nil
	}
	return telemetry.ServiceMetrics{}, fmt.Errorf("service %s: %w", id, router.ErrNotFound)
}

// ServiceMetrics returns the metrics of every id that has recorded a
// response, ordered by id.
func (g *Gateway) ServiceMetrics() []telemetry.ServiceMetrics {
	return g.collector.Services()
}

// Reset clears the cache, metrics, limiter windows, breaker state and the
// registry, then re-seeds the default catalog.
func (g *Gateway) Reset(ctx context.Context) error {
	if err := g.cache.Clear(ctx); err != nil {
		slog.Warn("cache clear failed during reset", "error", err)
	}
	g.collector.Reset()
	g.limiter.Reset()

	removed := g.registry.List()
	g.registry.Clear()
	for _, svc := range removed {
		g.health.Forget(svc.ID)
		g.serviceEvent(ctx, events.ServiceRemoved, svc)
	}

	slog.Info("gateway reset", "removed_services", len(removed))
	return g.Seed(ctx, g.defaults())
}
