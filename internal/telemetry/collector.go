package telemetry

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/af-corp/ai-gateway/internal/types"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// ServiceMetrics aggregates the responses attributed to one service.
type ServiceMetrics struct {
	ServiceID     string        `json:"service_id"`
	TotalRequests int64         `json:"total_requests"`
	SuccessCount  int64         `json:"success_count"`
	FailureCount  int64         `json:"failure_count"`
	AvgLatency    time.Duration `json:"avg_latency"`
	AvgRetryCount float64       `json:"avg_retry_count"`
	LastUsedAt    time.Time     `json:"last_used_at"`
}

// GatewayMetrics aggregates every completed response. Cancelled requests are
// counted separately and are not part of TotalRequests.
type GatewayMetrics struct {
	TotalRequests int64         `json:"total_requests"`
	SuccessCount  int64         `json:"success_count"`
	FailureCount  int64         `json:"failure_count"`
	CacheHits     int64         `json:"cache_hits"`
	Cancelled     int64         `json:"cancelled"`
	AvgLatency    time.Duration `json:"avg_latency"`
	AvgRetryCount float64       `json:"avg_retry_count"`
	LastRequestAt time.Time     `json:"last_request_at"`
}

// running is a running-average accumulator.
type running struct {
	n          int64
	success    int64
	failure    int64
	avgLatency float64
	avgRetries float64
	last       time.Time
}

func (r *running) add(resp *types.Response, at time.Time) {
	r.n++
	if resp.Success {
		r.success++
	} else {
		r.failure++
	}
	n := float64(r.n)
	r.avgLatency += (float64(resp.Latency) - r.avgLatency) / n
	r.avgRetries += (float64(resp.RetryCount) - r.avgRetries) / n
	r.last = at
}

type serviceEntry struct {
	mu sync.Mutex
	running
}

// Collector aggregates responses globally and per service. Each service has
// its own lock so unrelated services never contend.
type Collector struct {
	exporter *Metrics
	now      func() time.Time

	gmu       sync.Mutex
	global    running
	cacheHits int64
	cancelled int64

	smu      sync.RWMutex
	services map[string]*serviceEntry
}

// NewCollector creates a collector. exporter may be nil.
func NewCollector(exporter *Metrics) *Collector {
	return &Collector{
		exporter: exporter,
		now:      time.Now,
		services: make(map[string]*serviceEntry),
	}
}

// Record adds one completed response, attributed to resp.ServiceID.
func (c *Collector) Record(resp *types.Response) {
	at := resp.CompletedAt
	if at.IsZero() {
		at = c.now()
	}

	c.gmu.Lock()
	c.global.add(resp, at)
	if resp.ServiceID == types.CacheServiceID {
		c.cacheHits++
	}
	c.gmu.Unlock()

	e := c.entry(resp.ServiceID)
	e.mu.Lock()
	e.add(resp, at)
	e.mu.Unlock()

	outcome := OutcomeFailure
	if resp.Success {
		outcome = OutcomeSuccess
	}
	c.exporter.RecordRequest(resp.ServiceID, outcome, resp.Latency)
}

// RecordCancelled counts a request the caller abandoned. It touches no
// success, failure or average.
func (c *Collector) RecordCancelled(serviceID string) {
	c.gmu.Lock()
	c.cancelled++
	c.gmu.Unlock()
	c.exporter.RecordRequest(serviceID, OutcomeCancelled, 0)
}

func (c *Collector) entry(serviceID string) *serviceEntry {
	c.smu.RLock()
	e, ok := c.services[serviceID]
	c.smu.RUnlock()
	if ok {
		return e
	}

	c.smu.Lock()
	defer c.smu.Unlock()
	if e, ok := c.services[serviceID]; ok {
		return e
	}
	e = &serviceEntry{}
	c.services[serviceID] = e
	return e
}

// Global returns a snapshot of the gateway-wide aggregate.
func (c *Collector) Global() GatewayMetrics {
	c.gmu.Lock()
	defer c.gmu.Unlock()
	return GatewayMetrics{
		TotalRequests: c.global.n,
		SuccessCount:  c.global.success,
		FailureCount:  c.global.failure,
		CacheHits:     c.cacheHits,
		Cancelled:     c.cancelled,
		AvgLatency:    time.Duration(c.global.avgLatency),
		AvgRetryCount: c.global.avgRetries,
		LastRequestAt: c.global.last,
	}
}

// Service returns the aggregate for one service, if it has recorded anything.
func (c *Collector) Service(serviceID string) (ServiceMetrics, bool) {
	c.smu.RLock()
	e, ok := c.services[serviceID]
	c.smu.RUnlock()
	if !ok {
		return ServiceMetrics{}, false
	}
	return e.snapshot(serviceID), true
}

// Services returns every per-service aggregate ordered by service id.
func (c *Collector) Services() []ServiceMetrics {
	c.smu.RLock()
	out := make([]ServiceMetrics, 0, len(c.services))
	for id, e := range c.services {
		out = append(out, e.snapshot(id))
	}
	c.smu.RUnlock()

	slices.SortFunc(out, func(a, b ServiceMetrics) int { return cmp.Compare(a.ServiceID, b.ServiceID) })
	return out
}

func (e *serviceEntry) snapshot(id string) ServiceMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ServiceMetrics{
		ServiceID:     id,
		TotalRequests: e.n,
		SuccessCount:  e.success,
		FailureCount:  e.failure,
		AvgLatency:    time.Duration(e.avgLatency),
		AvgRetryCount: e.avgRetries,
		LastUsedAt:    e.last,
	}
}

// Reset discards every aggregate. Exported Prometheus series are cumulative
// and are left alone.
func (c *Collector) Reset() {
	c.gmu.Lock()
	c.global = running{}
	c.cacheHits = 0
	c.cancelled = 0
	c.gmu.Unlock()

	c.smu.Lock()
	c.services = make(map[string]*serviceEntry)
	c.smu.Unlock()
}
