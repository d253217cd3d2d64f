package health

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/af-corp/ai-gateway/internal/events"
)

func status(t *testing.T, r *Reporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := r.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestReporter_GatewayServing(t *testing.T) {
	r := NewReporter()
	if got := status(t, r, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected gateway SERVING, got %s", got)
	}
}

func TestReporter_FollowsCatalogEvents(t *testing.T) {
	r := NewReporter()
	bus := events.NewBus()
	bus.Subscribe(r.Hook())
	bus.Publish(context.Background(), events.Event{Type: events.ServiceAdded, ServiceID: "openai-gpt4", Enabled: true})
	bus.Publish(context.Background(), events.Event{Type: events.ServiceAdded, ServiceID: "aws-bedrock"})

	if got := status(t, r, "openai-gpt4"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected openai-gpt4 SERVING, got %s", got)
	}
	if got := status(t, r, "aws-bedrock"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected aws-bedrock NOT_SERVING, got %s", got)
	}

	bus.Publish(context.Background(), events.Event{Type: events.ServiceDisabled, ServiceID: "openai-gpt4"})
	bus.Publish(context.Background(), events.Event{Type: events.ServiceEnabled, ServiceID: "aws-bedrock", Enabled: true})

	if got := status(t, r, "openai-gpt4"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected openai-gpt4 NOT_SERVING after disable, got %s", got)
	}
	if got := status(t, r, "aws-bedrock"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected aws-bedrock SERVING after enable, got %s", got)
	}

	bus.Publish(context.Background(), events.Event{Type: events.ServiceRemoved, ServiceID: "aws-bedrock"})
	if got := status(t, r, "aws-bedrock"); got != healthpb.HealthCheckResponse_SERVICE_UNKNOWN {
		t.Errorf("expected removed service SERVICE_UNKNOWN, got %s", got)
	}
}

func TestReporter_UnknownServiceIsNotFound(t *testing.T) {
	r := NewReporter()
	if _, err := r.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: "never-registered"}); err == nil {
		t.Error("expected NotFound for an unregistered service")
	}
}
