package resilience

import (
	"context"
	"log/slog"

	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

// Failover re-dispatches a failed request once to the primary's fallback
// service. The fallback gets a single attempt with no retries.
type Failover struct {
	registry *router.Registry
	executor *Executor
	metrics  *telemetry.Metrics
}

func NewFailover(registry *router.Registry, executor *Executor, metrics *telemetry.Metrics) *Failover {
	return &Failover{registry: registry, executor: executor, metrics: metrics}
}

// Execute handles the outcome of a failed primary dispatch. When the primary
// has no usable fallback (absent, unknown or disabled) or the caller has gone
// away, primaryResp and primaryErr are returned unchanged.
func (f *Failover) Execute(ctx context.Context, primaryID string, req *types.Request, primaryResp *types.Response, primaryErr error) (*types.Response, error) {
	if ctx.Err() != nil {
		return primaryResp, primaryErr
	}
	primary, err := f.registry.Get(primaryID)
	if err != nil || primary.FallbackServiceID == "" {
		return primaryResp, primaryErr
	}
	fallbackID := primary.FallbackServiceID
	if _, _, err := f.registry.Resolve(fallbackID); err != nil {
		return primaryResp, primaryErr
	}

	slog.Warn("failing over",
		"request_id", req.ID,
		"service_id", primaryID,
		"fallback_service_id", fallbackID,
		"error", primaryErr,
	)

	resp, err := f.executor.once(ctx, fallbackID, req)
	resp.RetryCount = 1
	if err != nil {
		if ctx.Err() != nil {
			return resp, err
		}
		f.metrics.RecordFailover(primaryID, fallbackID, telemetry.OutcomeFailure)
		return resp, &FailoverError{PrimaryID: primaryID, FallbackID: fallbackID, Err: err}
	}
	f.metrics.RecordFailover(primaryID, fallbackID, telemetry.OutcomeSuccess)
	return resp, nil
}
