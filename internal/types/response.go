package types

import "time"

const (
	// CacheServiceID attributes a response served from the response cache.
	CacheServiceID = "cache"
	// GatewayServiceID attributes failures that happened before any service
	// was dispatched (admission, routing).
	GatewayServiceID = "gateway"
)

// Response is the final outcome of one Request.
type Response struct {
	ID          string        `json:"id"`
	RequestID   string        `json:"request_id"`
	ServiceID   string        `json:"service_id"`
	Success     bool          `json:"success"`
	Data        any           `json:"data,omitempty"`
	Error       string        `json:"error,omitempty"`
	Latency     time.Duration `json:"latency"`
	CompletedAt time.Time     `json:"completed_at"`
	RetryCount  int           `json:"retry_count"`
}
