package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus series exported by the gateway. All methods
// are safe on a nil receiver so components can run without an exporter.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	AttemptTotal      *prometheus.CounterVec
	CacheLookupTotal  *prometheus.CounterVec
	RateLimitedTotal  *prometheus.CounterVec
	FailoverTotal     *prometheus.CounterVec
}

// NewMetrics creates the gateway series and registers them with reg.
// A nil reg leaves the series unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_request_total",
			Help: "Completed gateway requests by attributed service and outcome.",
		}, []string{"service", "outcome"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_gateway_request_duration_ms",
			Help:    "End-to-end request latency in milliseconds, including retries.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"service"}),

		AttemptTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_attempt_total",
			Help: "Individual provider calls, including retries and failover attempts.",
		}, []string{"service", "outcome"}),

		CacheLookupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_cache_lookup_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),

		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_rate_limited_total",
			Help: "Calls that hit the rate limit, by whether they waited or were rejected.",
		}, []string{"mode"}),

		FailoverTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_gateway_failover_total",
			Help: "Failover dispatches by primary, fallback and outcome.",
		}, []string{"primary", "fallback", "outcome"}),
	}
}

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(serviceID string, outcome Outcome, latency time.Duration) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(serviceID, string(outcome)).Inc()
	if outcome != OutcomeCancelled {
		m.RequestDurationMs.WithLabelValues(serviceID).Observe(float64(latency) / float64(time.Millisecond))
	}
}

func (m *Metrics) RecordAttempt(serviceID string, outcome Outcome) {
	if m == nil {
		return
	}
	m.AttemptTotal.WithLabelValues(serviceID, string(outcome)).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(result).Inc()
}

// RecordRateLimited counts a limited call; mode is "wait" or "reject".
func (m *Metrics) RecordRateLimited(mode string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordFailover(primary, fallback string, outcome Outcome) {
	if m == nil {
		return
	}
	m.FailoverTotal.WithLabelValues(primary, fallback, string(outcome)).Inc()
}
