package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/af-corp/ai-gateway/internal/types"
)

func resp(serviceID string, success bool, latency time.Duration, retries int) *types.Response {
	return &types.Response{
		ServiceID:   serviceID,
		Success:     success,
		Latency:     latency,
		RetryCount:  retries,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCollector_RunningAverages(t *testing.T) {
	c := NewCollector(nil)

	c.Record(resp("a", true, 100*time.Millisecond, 0))
	c.Record(resp("a", false, 300*time.Millisecond, 2))
	c.Record(resp("b", true, 200*time.Millisecond, 1))

	g := c.Global()
	if g.TotalRequests != 3 || g.SuccessCount != 2 || g.FailureCount != 1 {
		t.Errorf("unexpected global counters %+v", g)
	}
	if g.AvgLatency != 200*time.Millisecond {
		t.Errorf("expected avg latency 200ms, got %s", g.AvgLatency)
	}
	if g.AvgRetryCount != 1 {
		t.Errorf("expected avg retry count 1, got %v", g.AvgRetryCount)
	}

	a, ok := c.Service("a")
	if !ok {
		t.Fatal("expected metrics for a")
	}
	if a.TotalRequests != 2 || a.SuccessCount != 1 || a.FailureCount != 1 {
		t.Errorf("unexpected counters for a %+v", a)
	}
	if a.AvgLatency != 200*time.Millisecond || a.AvgRetryCount != 1 {
		t.Errorf("unexpected averages for a %+v", a)
	}
	if a.LastUsedAt.IsZero() {
		t.Error("expected last used timestamp")
	}
}

func TestCollector_CacheHitsCounted(t *testing.T) {
	c := NewCollector(nil)
	c.Record(resp(types.CacheServiceID, true, 0, 0))
	c.Record(resp("a", true, time.Millisecond, 0))

	g := c.Global()
	if g.CacheHits != 1 || g.TotalRequests != 2 {
		t.Errorf("unexpected global %+v", g)
	}
	if _, ok := c.Service(types.CacheServiceID); !ok {
		t.Error("expected cache hits attributed to the cache pseudo-service")
	}
}

func TestCollector_CancelledIsSeparate(t *testing.T) {
	c := NewCollector(nil)
	c.Record(resp("a", true, 10*time.Millisecond, 0))
	c.RecordCancelled("a")

	g := c.Global()
	if g.Cancelled != 1 {
		t.Errorf("expected 1 cancelled, got %d", g.Cancelled)
	}
	if g.TotalRequests != 1 || g.SuccessCount != 1 || g.FailureCount != 0 {
		t.Errorf("cancelled request must not touch totals %+v", g)
	}
	a, _ := c.Service("a")
	if a.TotalRequests != 1 {
		t.Errorf("cancelled request must not touch service totals %+v", a)
	}
}

func TestCollector_ConcurrentRecordsAreNotLost(t *testing.T) {
	c := NewCollector(NewMetrics(prometheus.NewRegistry()))

	const workers, perWorker = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("svc-%d", w%3)
			for i := 0; i < perWorker; i++ {
				c.Record(resp(id, i%2 == 0, time.Millisecond, 0))
			}
		}(w)
	}
	wg.Wait()

	g := c.Global()
	if g.TotalRequests != workers*perWorker {
		t.Fatalf("expected %d requests, got %d", workers*perWorker, g.TotalRequests)
	}
	var sum int64
	for _, s := range c.Services() {
		sum += s.TotalRequests
		if s.SuccessCount+s.FailureCount != s.TotalRequests {
			t.Errorf("service %s counters do not add up: %+v", s.ServiceID, s)
		}
	}
	if sum != g.TotalRequests {
		t.Errorf("per-service totals %d do not sum to global %d", sum, g.TotalRequests)
	}
	if g.SuccessCount+g.FailureCount != g.TotalRequests {
		t.Errorf("global counters do not add up: %+v", g)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(nil)
	c.Record(resp("a", true, time.Millisecond, 0))
	c.RecordCancelled("a")
	c.Reset()

	if g := c.Global(); g.TotalRequests != 0 || g.Cancelled != 0 {
		t.Errorf("expected zeroed metrics, got %+v", g)
	}
	if len(c.Services()) != 0 {
		t.Error("expected no per-service metrics after reset")
	}
}

func TestCollector_ForwardsToExporter(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := NewCollector(m)

	c.Record(resp("a", false, time.Millisecond, 1))
	c.RecordCancelled("a")

	if got := counterValue(t, m.RequestTotal, "a", "failure"); got != 1 {
		t.Errorf("expected exported failure, got %v", got)
	}
	if got := counterValue(t, m.RequestTotal, "a", "cancelled"); got != 1 {
		t.Errorf("expected exported cancellation, got %v", got)
	}
}
