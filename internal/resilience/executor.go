// Package resilience runs provider calls with bounded retries, exponential
// backoff and a single failover hop.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/af-corp/ai-gateway/internal/provider"
	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

// DefaultBackoffBase is the delay unit between retries.
const DefaultBackoffBase = time.Second

// Executor invokes the provider client of one service, retrying failures.
type Executor struct {
	registry    *router.Registry
	health      *router.HealthTracker
	metrics     *telemetry.Metrics
	backoffBase time.Duration
}

type Option func(*Executor)

// WithHealth enables circuit breaking. A nil tracker disables it.
func WithHealth(ht *router.HealthTracker) Option {
	return func(e *Executor) { e.health = ht }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func WithBackoffBase(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.backoffBase = d
		}
	}
}

func NewExecutor(registry *router.Registry, opts ...Option) *Executor {
	e := &Executor{registry: registry, backoffBase: DefaultBackoffBase}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backoff returns the wait before retry number attempt (1-based):
// base * 2^attempt.
func (e *Executor) Backoff(attempt int) time.Duration {
	return e.backoffBase << attempt
}

// Execute calls serviceID with up to MaxRetries retries. The returned
// Response is never nil; on failure it carries the error text and the
// number of retries made. The error is an *ExecutionError, a registry
// error, or the context's error when ctx ends first.
func (e *Executor) Execute(ctx context.Context, serviceID string, req *types.Request) (*types.Response, error) {
	cfg, client, err := e.registry.Resolve(serviceID)
	if err != nil {
		return failed(req, serviceID, err, 0, 0), err
	}
	return e.run(ctx, cfg, client, req, cfg.MaxRetries+1)
}

// once calls serviceID exactly one time.
func (e *Executor) once(ctx context.Context, serviceID string, req *types.Request) (*types.Response, error) {
	cfg, client, err := e.registry.Resolve(serviceID)
	if err != nil {
		return failed(req, serviceID, err, 0, 0), err
	}
	return e.run(ctx, cfg, client, req, 1)
}

func (e *Executor) run(ctx context.Context, cfg types.ServiceConfig, client provider.Client, req *types.Request, maxAttempts int) (*types.Response, error) {
	start := time.Now()
	log := slog.With("request_id", req.ID, "service_id", cfg.ID)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.Backoff(attempt)
			log.Warn("retrying provider call", "attempt", attempt+1, "backoff_ms", delay.Milliseconds(), "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return failed(req, cfg.ID, err, attempts-1, time.Since(start)), fmt.Errorf("execute %s: %w", cfg.ID, err)
			}
		}

		if !e.health.Allow(cfg.ID) {
			lastErr = ErrCircuitOpen
			break
		}

		attempts++
		data, err := e.attempt(ctx, cfg, client, req)
		if err == nil {
			e.health.RecordSuccess(cfg.ID)
			e.metrics.RecordAttempt(cfg.ID, telemetry.OutcomeSuccess)
			return &types.Response{
				RequestID:   req.ID,
				ServiceID:   cfg.ID,
				Success:     true,
				Data:        data,
				Latency:     time.Since(start),
				CompletedAt: time.Now(),
				RetryCount:  attempt,
			}, nil
		}

		if ctx.Err() != nil {
			e.health.Release(cfg.ID)
			e.metrics.RecordAttempt(cfg.ID, telemetry.OutcomeCancelled)
			return failed(req, cfg.ID, ctx.Err(), attempts-1, time.Since(start)), fmt.Errorf("execute %s: %w", cfg.ID, ctx.Err())
		}
		e.health.RecordFailure(cfg.ID)
		e.metrics.RecordAttempt(cfg.ID, telemetry.OutcomeFailure)
		lastErr = err
	}

	err := &ExecutionError{ServiceID: cfg.ID, Attempts: attempts, Err: lastErr}
	retries := max(attempts-1, 0)
	log.Error("provider call failed", "attempts", attempts, "error", lastErr)
	return failed(req, cfg.ID, err, retries, time.Since(start)), err
}

// attempt bounds a single provider call by the service timeout.
func (e *Executor) attempt(ctx context.Context, cfg types.ServiceConfig, client provider.Client, req *types.Request) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.EffectiveTimeout())
	defer cancel()

	data, err := client.Execute(callCtx, req)
	if err == nil {
		return data, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("timed out after %s: %w", cfg.EffectiveTimeout(), err)
	}
	return nil, err
}

func failed(req *types.Request, serviceID string, err error, retries int, latency time.Duration) *types.Response {
	return &types.Response{
		RequestID:   req.ID,
		ServiceID:   serviceID,
		Error:       err.Error(),
		Latency:     latency,
		CompletedAt: time.Now(),
		RetryCount:  max(retries, 0),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
