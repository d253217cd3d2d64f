// Package health exposes the gRPC health checking protocol. The empty
// service name reports the gateway itself; every registered service id is
// SERVING while enabled and NOT_SERVING otherwise.
package health

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/af-corp/ai-gateway/internal/events"
)

type Reporter struct {
	server *health.Server
}

func NewReporter() *Reporter {
	s := health.NewServer()
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Reporter{server: s}
}

// Register attaches the health service to a gRPC server.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// Server returns the underlying health server, mainly for in-process checks.
func (r *Reporter) Server() *health.Server { return r.server }

// Hook keeps statuses in line with catalog events.
func (r *Reporter) Hook() events.Hook {
	return func(_ context.Context, e events.Event) {
		switch e.Type {
		case events.ServiceAdded, events.ServiceUpdated, events.ServiceEnabled, events.ServiceDisabled:
			r.set(e.ServiceID, e.Enabled)
		case events.ServiceRemoved:
			r.server.SetServingStatus(e.ServiceID, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
		}
	}
}

func (r *Reporter) set(id string, enabled bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if enabled {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.server.SetServingStatus(id, status)
}

// Shutdown marks every service NOT_SERVING so clients drain.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}
