package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestBus_DeliversInOrderToAllHooks(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	var first, second []Type
	b.Subscribe(func(_ context.Context, e Event) {
		mu.Lock()
		first = append(first, e.Type)
		mu.Unlock()
	})
	b.Subscribe(func(_ context.Context, e Event) {
		mu.Lock()
		second = append(second, e.Type)
		mu.Unlock()
	})

	b.Publish(context.Background(), Event{Type: ServiceAdded, ServiceID: "a"})
	b.Publish(context.Background(), Event{Type: ServiceDisabled, ServiceID: "a"})

	want := []Type{ServiceAdded, ServiceDisabled}
	for _, got := range [][]Type{first, second} {
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

func TestBus_StampsTime(t *testing.T) {
	b := NewBus()
	var got Event
	b.Subscribe(func(_ context.Context, e Event) { got = e })

	b.Publish(context.Background(), Event{Type: ConfigUpdated})
	if got.Time.IsZero() {
		t.Error("expected publish to stamp the event time")
	}
}

func TestBus_NilIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(context.Background(), Event{Type: RequestStarted})
}

func TestEvent_IsService(t *testing.T) {
	for _, typ := range []Type{ServiceAdded, ServiceUpdated, ServiceRemoved, ServiceEnabled, ServiceDisabled} {
		if !(Event{Type: typ}).IsService() {
			t.Errorf("%s should be a service event", typ)
		}
	}
	for _, typ := range []Type{RequestStarted, RequestCompleted, ConfigUpdated} {
		if (Event{Type: typ}).IsService() {
			t.Errorf("%s should not be a service event", typ)
		}
	}
}

func TestLogHook_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogHook(logger)(context.Background(), Event{
		Type:       RequestCompleted,
		RequestID:  "req-1",
		ServiceID:  "anthropic-claude3",
		Success:    false,
		Error:      "boom",
		RetryCount: 2,
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["event"] != "request.completed" || rec["request_id"] != "req-1" || rec["service_id"] != "anthropic-claude3" {
		t.Errorf("unexpected log record %v", rec)
	}
	if rec["level"] != "WARN" {
		t.Errorf("expected failed completion at WARN, got %v", rec["level"])
	}
	if rec["retry_count"] != float64(2) {
		t.Errorf("expected retry_count 2, got %v", rec["retry_count"])
	}
}

func TestLogHook_StartedIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogHook(logger)(context.Background(), Event{Type: RequestStarted, RequestID: "req-1"})
	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("expected request.started to be filtered at info level, got %s", buf.String())
	}
}

func TestRedisPublisher_NilClientIsNoop(t *testing.T) {
	NewRedisPublisher(nil, "").Hook()(context.Background(), Event{Type: ConfigUpdated})
}
