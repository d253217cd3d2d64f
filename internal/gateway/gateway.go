// Package gateway is the single entry point for AI requests. It admits a
// request through the rate limiter, answers from the cache when it can,
// routes, executes with retries and failover, and records the outcome.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/ai-gateway/internal/cache"
	"github.com/af-corp/ai-gateway/internal/config"
	"github.com/af-corp/ai-gateway/internal/events"
	"github.com/af-corp/ai-gateway/internal/ratelimit"
	"github.com/af-corp/ai-gateway/internal/resilience"
	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

// Deps are the collaborators of a Gateway. Only Registry is required;
// the rest default to in-process implementations built from the config.
type Deps struct {
	Registry  *router.Registry
	Health    *router.HealthTracker
	Executor  *resilience.Executor
	Failover  *resilience.Failover
	Limiter   *ratelimit.Limiter
	Cache     *cache.Manager
	Collector *telemetry.Collector
	Metrics   *telemetry.Metrics
	Bus       *events.Bus

	// Defaults returns the catalog Reset re-seeds. Nil means empty.
	Defaults func() []types.ServiceConfig
}

type Gateway struct {
	registry  *router.Registry
	router    *router.Router
	health    *router.HealthTracker
	executor  *resilience.Executor
	failover  *resilience.Failover
	limiter   *ratelimit.Limiter
	cache     *cache.Manager
	collector *telemetry.Collector
	metrics   *telemetry.Metrics
	bus       *events.Bus
	defaults  func() []types.ServiceConfig

	mu  sync.RWMutex
	cfg config.GatewayConfig
}

func New(cfg config.GatewayConfig, deps Deps) (*Gateway, error) {
	if deps.Registry == nil {
		return nil, errors.New("gateway: registry is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		registry:  deps.Registry,
		router:    router.New(deps.Registry),
		health:    deps.Health,
		executor:  deps.Executor,
		failover:  deps.Failover,
		limiter:   deps.Limiter,
		cache:     deps.Cache,
		collector: deps.Collector,
		metrics:   deps.Metrics,
		bus:       deps.Bus,
		defaults:  deps.Defaults,
		cfg:       cfg,
	}
	if g.executor == nil {
		g.executor = resilience.NewExecutor(g.registry,
			resilience.WithHealth(g.health),
			resilience.WithMetrics(deps.Metrics),
			resilience.WithBackoffBase(cfg.RetryBackoffBase),
		)
	}
	if g.failover == nil {
		g.failover = resilience.NewFailover(g.registry, g.executor, deps.Metrics)
	}
	if g.limiter == nil {
		g.limiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg.RateLimitMaxRequests, cfg.RateLimitWindow, deps.Metrics)
	}
	if g.cache == nil {
		g.cache = cache.NewManager(cache.NewMemoryStore(), cfg.CacheTTL)
	}
	if g.collector == nil {
		g.collector = telemetry.NewCollector(deps.Metrics)
	}
	if g.defaults == nil {
		g.defaults = func() []types.ServiceConfig { return nil }
	}
	return g, nil
}

// SubmitOptions are the optional parts of a request.
type SubmitOptions struct {
	// RequestID is used as the request id when set, otherwise one is generated.
	RequestID string
	// ServiceID pins the request to one service and bypasses the router.
	ServiceID  string
	CallerID   string
	Context    map[string]any
	Parameters map[string]any
	// NonBlocking makes a full rate-limit window fail with
	// *ratelimit.LimitedError instead of waiting.
	NonBlocking bool
}

// Submit runs one request to completion. The returned Response is never
// nil: on failure it carries the error text and the service the failure is
// attributed to. The error is nil exactly when Response.Success is true.
func (g *Gateway) Submit(ctx context.Context, capability types.Capability, payload string, opts SubmitOptions) (*types.Response, error) {
	req := &types.Request{
		ID:          opts.RequestID,
		Capability:  capability,
		Payload:     payload,
		ServiceID:   opts.ServiceID,
		CallerID:    opts.CallerID,
		Context:     opts.Context,
		Parameters:  opts.Parameters,
		SubmittedAt: time.Now(),
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	g.bus.Publish(ctx, events.Event{
		Type:       events.RequestStarted,
		RequestID:  req.ID,
		CallerID:   req.CallerID,
		Capability: req.Capability,
		ServiceID:  req.ServiceID,
	})

	if _, ok := types.ParseCapability(string(capability)); !ok {
		err := fmt.Errorf("%w: unknown capability %q", types.ErrInvalidRequest, capability)
		return g.finish(ctx, req, gatewayFailure(req, err), err), err
	}

	resp, err := g.dispatch(ctx, req, opts.NonBlocking)
	return g.finish(ctx, req, resp, err), err
}

func (g *Gateway) dispatch(ctx context.Context, req *types.Request, nonBlocking bool) (*types.Response, error) {
	cfg := g.Config()

	if cfg.RateLimiting {
		key := ratelimit.Key(req.CallerID, req.Capability)
		if err := g.limiter.Acquire(ctx, key, cfg.RateLimitBlocking && !nonBlocking); err != nil {
			return gatewayFailure(req, err), err
		}
	}

	serviceID, err := g.pin(req, cfg)
	if err != nil {
		return gatewayFailure(req, err), err
	}

	var fingerprint string
	if cfg.Caching {
		fingerprint = cache.Fingerprint(req)
		data, hit := g.cache.Get(ctx, fingerprint)
		g.metrics.RecordCacheLookup(hit)
		if hit {
			return &types.Response{
				RequestID:   req.ID,
				ServiceID:   types.CacheServiceID,
				Success:     true,
				Data:        data,
				CompletedAt: time.Now(),
			}, nil
		}
	}

	if serviceID == "" {
		if serviceID, err = g.router.Select(req.Capability); err != nil {
			return gatewayFailure(req, err), err
		}
	}

	resp, err := g.executor.Execute(ctx, serviceID, req)
	if err != nil && cfg.Failover && ctx.Err() == nil && errors.Is(err, resilience.ErrExecutionFailed) {
		resp, err = g.failover.Execute(ctx, serviceID, req, resp, err)
	}
	if err != nil {
		return resp, err
	}

	if cfg.Caching {
		g.cache.Put(ctx, fingerprint, resp.Data)
	}
	return resp, nil
}

// pin validates the service req is pinned to and returns its id. It returns
// "" when the router should choose. It runs before the cache lookup, so a
// pinned service that is missing, disabled or incompatible never serves a
// cached result, and its failures are attributed to the gateway.
func (g *Gateway) pin(req *types.Request, cfg config.GatewayConfig) (string, error) {
	if req.ServiceID == "" {
		if !cfg.LoadBalancing {
			return "", fmt.Errorf("%w: load balancing is disabled and no service id was given", router.ErrNoServiceAvailable)
		}
		return "", nil
	}

	svc, err := g.registry.Get(req.ServiceID)
	if err != nil {
		return "", err
	}
	if !svc.Enabled {
		return "", fmt.Errorf("service %s: %w", svc.ID, router.ErrServiceDisabled)
	}
	if !svc.Capability.CompatibleWith(req.Capability) {
		return "", fmt.Errorf("%w: service %s serves %s, not %s", types.ErrInvalidRequest, svc.ID, svc.Capability, req.Capability)
	}
	return svc.ID, nil
}

// finish stamps the response, records it and emits request.completed.
func (g *Gateway) finish(ctx context.Context, req *types.Request, resp *types.Response, err error) *types.Response {
	resp.ID = uuid.NewString()
	resp.RequestID = req.ID
	if resp.CompletedAt.IsZero() {
		resp.CompletedAt = time.Now()
	}

	cancelled := err != nil && ctx.Err() != nil
	if cancelled {
		g.collector.RecordCancelled(resp.ServiceID)
	} else {
		g.collector.Record(resp)
	}

	g.bus.Publish(ctx, events.Event{
		Type:       events.RequestCompleted,
		RequestID:  req.ID,
		CallerID:   req.CallerID,
		Capability: req.Capability,
		ServiceID:  resp.ServiceID,
		Success:    resp.Success,
		Cancelled:  cancelled,
		Error:      resp.Error,
		Latency:    resp.Latency,
		RetryCount: resp.RetryCount,
	})
	return resp
}

func gatewayFailure(req *types.Request, err error) *types.Response {
	return &types.Response{
		RequestID:   req.ID,
		ServiceID:   types.GatewayServiceID,
		Error:       err.Error(),
		CompletedAt: time.Now(),
	}
}

// Config returns the current gateway configuration.
func (g *Gateway) Config() config.GatewayConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// UpdateConfig applies the runtime toggles, cache TTL and rate-limit
// settings of cfg. Backends, backoff and breaker settings only take effect
// at startup and are kept from the current config.
func (g *Gateway) UpdateConfig(ctx context.Context, cfg config.GatewayConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	cfg.CacheBackend = g.cfg.CacheBackend
	cfg.RateLimitBackend = g.cfg.RateLimitBackend
	cfg.CacheSweepInterval = g.cfg.CacheSweepInterval
	cfg.RetryBackoffBase = g.cfg.RetryBackoffBase
	cfg.CircuitBreaker = g.cfg.CircuitBreaker
	g.cfg = cfg
	g.mu.Unlock()

	g.limiter.Configure(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	g.cache.SetTTL(cfg.CacheTTL)

	slog.Info("gateway config updated",
		"load_balancing", cfg.LoadBalancing,
		"failover", cfg.Failover,
		"caching", cfg.Caching,
		"rate_limiting", cfg.RateLimiting,
		"cache_ttl", cfg.CacheTTL.String(),
		"rate_limit_window", cfg.RateLimitWindow.String(),
		"rate_limit_max_requests", cfg.RateLimitMaxRequests,
	)
	g.bus.Publish(ctx, events.Event{Type: events.ConfigUpdated})
	return nil
}
