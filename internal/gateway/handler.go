package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/ai-gateway/internal/config"
	"github.com/af-corp/ai-gateway/internal/httputil"
	"github.com/af-corp/ai-gateway/internal/telemetry"
	"github.com/af-corp/ai-gateway/internal/types"
)

const maxBodyBytes = 4 << 20

// Handler exposes a Gateway over HTTP.
type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

// Routes mounts the gateway API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/requests", h.SubmitRequest)

	r.Route("/v1/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Post("/", h.AddService)
		r.Get("/{id}", h.GetService)
		r.Patch("/{id}", h.UpdateService)
		r.Delete("/{id}", h.RemoveService)
		r.Post("/{id}/enable", h.EnableService)
		r.Post("/{id}/disable", h.DisableService)
	})

	r.Get("/v1/metrics", h.GetMetrics)
	r.Get("/v1/metrics/services", h.ListServiceMetrics)
	r.Get("/v1/metrics/services/{id}", h.GetServiceMetrics)

	r.Get("/v1/config", h.GetConfig)
	r.Put("/v1/config", h.UpdateConfig)
	r.Post("/v1/reset", h.Reset)
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	reqID := w.Header().Get("X-Request-ID")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dest); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

type submitRequest struct {
	Capability  types.Capability `json:"capability"`
	Payload     string           `json:"payload"`
	ServiceID   string           `json:"service_id,omitempty"`
	CallerID    string           `json:"caller_id,omitempty"`
	Context     map[string]any   `json:"context,omitempty"`
	Parameters  map[string]any   `json:"parameters,omitempty"`
	NonBlocking bool             `json:"non_blocking,omitempty"`
}

type responseView struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	ServiceID   string    `json:"service_id"`
	Success     bool      `json:"success"`
	Data        any       `json:"data,omitempty"`
	Error       string    `json:"error,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	RetryCount  int       `json:"retry_count"`
	CompletedAt time.Time `json:"completed_at"`
}

func viewResponse(r *types.Response) responseView {
	return responseView{
		ID:          r.ID,
		RequestID:   r.RequestID,
		ServiceID:   r.ServiceID,
		Success:     r.Success,
		Data:        r.Data,
		Error:       r.Error,
		LatencyMs:   r.Latency.Milliseconds(),
		RetryCount:  r.RetryCount,
		CompletedAt: r.CompletedAt,
	}
}

// SubmitRequest handles POST /v1/requests. The caller id comes from the
// X-Caller-ID header when the body does not set one.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var in submitRequest
	if !decode(w, r, &in) {
		return
	}
	if in.Capability == "" {
		httputil.WriteBadRequestError(w, reqID, "capability is required")
		return
	}
	if in.Payload == "" {
		httputil.WriteBadRequestError(w, reqID, "payload is required")
		return
	}
	if in.CallerID == "" {
		in.CallerID = r.Header.Get("X-Caller-ID")
	}

	resp, err := h.gw.Submit(r.Context(), in.Capability, in.Payload, SubmitOptions{
		RequestID:   reqID,
		ServiceID:   in.ServiceID,
		CallerID:    in.CallerID,
		Context:     in.Context,
		Parameters:  in.Parameters,
		NonBlocking: in.NonBlocking,
	})
	if err != nil {
		httputil.WriteGatewayError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewResponse(resp))
}

// serviceBody is the wire form of a ServiceConfig. Unlike the view it
// accepts a credential.
type serviceBody struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Provider          types.ProviderKind `json:"provider"`
	Capability        types.Capability   `json:"capability"`
	Endpoint          string             `json:"endpoint"`
	Credential        string             `json:"credential"`
	Model             string             `json:"model"`
	Parameters        map[string]any     `json:"parameters"`
	Enabled           bool               `json:"enabled"`
	Priority          int                `json:"priority"`
	TimeoutMs         int64              `json:"timeout_ms"`
	MaxRetries        int                `json:"max_retries"`
	FallbackServiceID string             `json:"fallback_service_id"`
}

func (b serviceBody) config() types.ServiceConfig {
	return types.ServiceConfig{
		ID:                b.ID,
		Name:              b.Name,
		Provider:          b.Provider,
		Capability:        b.Capability,
		Endpoint:          b.Endpoint,
		Credential:        b.Credential,
		Model:             b.Model,
		Parameters:        b.Parameters,
		Enabled:           b.Enabled,
		Priority:          b.Priority,
		Timeout:           time.Duration(b.TimeoutMs) * time.Millisecond,
		MaxRetries:        b.MaxRetries,
		FallbackServiceID: b.FallbackServiceID,
	}
}

type servicePatch struct {
	Name              *string             `json:"name"`
	Provider          *types.ProviderKind `json:"provider"`
	Capability        *types.Capability   `json:"capability"`
	Endpoint          *string             `json:"endpoint"`
	Credential        *string             `json:"credential"`
	Model             *string             `json:"model"`
	Parameters        map[string]any      `json:"parameters"`
	Enabled           *bool               `json:"enabled"`
	Priority          *int                `json:"priority"`
	TimeoutMs         *int64              `json:"timeout_ms"`
	MaxRetries        *int                `json:"max_retries"`
	FallbackServiceID *string             `json:"fallback_service_id"`
}

func (p servicePatch) update() types.ServiceUpdate {
	u := types.ServiceUpdate{
		Name:              p.Name,
		Provider:          p.Provider,
		Capability:        p.Capability,
		Endpoint:          p.Endpoint,
		Credential:        p.Credential,
		Model:             p.Model,
		Parameters:        p.Parameters,
		Enabled:           p.Enabled,
		Priority:          p.Priority,
		MaxRetries:        p.MaxRetries,
		FallbackServiceID: p.FallbackServiceID,
	}
	if p.TimeoutMs != nil {
		d := time.Duration(*p.TimeoutMs) * time.Millisecond
		u.Timeout = &d
	}
	return u
}

type serviceView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name,omitempty"`
	Provider          types.ProviderKind `json:"provider"`
	Capability        types.Capability   `json:"capability"`
	Endpoint          string             `json:"endpoint"`
	HasCredential     bool               `json:"has_credential"`
	Model             string             `json:"model"`
	Parameters        map[string]any     `json:"parameters,omitempty"`
	Enabled           bool               `json:"enabled"`
	Priority          int                `json:"priority"`
	TimeoutMs         int64              `json:"timeout_ms"`
	MaxRetries        int                `json:"max_retries"`
	FallbackServiceID string             `json:"fallback_service_id,omitempty"`
}

func viewService(s types.ServiceConfig) serviceView {
	return serviceView{
		ID:                s.ID,
		Name:              s.Name,
		Provider:          s.Provider,
		Capability:        s.Capability,
		Endpoint:          s.Endpoint,
		HasCredential:     s.HasCredential(),
		Model:             s.Model,
		Parameters:        s.Parameters,
		Enabled:           s.Enabled,
		Priority:          s.Priority,
		TimeoutMs:         s.EffectiveTimeout().Milliseconds(),
		MaxRetries:        s.MaxRetries,
		FallbackServiceID: s.FallbackServiceID,
	}
}

type serviceList struct {
	Object string        `json:"object"`
	Data   []serviceView `json:"data"`
}

// ListServices handles GET /v1/services. With ?capability=X it returns only
// the enabled services of X in routing order.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var services []types.ServiceConfig
	if c := r.URL.Query().Get("capability"); c != "" {
		capability, ok := types.ParseCapability(c)
		if !ok {
			httputil.WriteBadRequestError(w, reqID, fmt.Sprintf("unknown capability %q", c))
			return
		}
		services = h.gw.ListEnabledServices(capability)
	} else {
		services = h.gw.ListServices()
	}

	out := serviceList{Object: "list", Data: make([]serviceView, 0, len(services))}
	for _, s := range services {
		out.Data = append(out.Data, viewService(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) AddService(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var in serviceBody
	if !decode(w, r, &in) {
		return
	}
	if err := h.gw.AddService(r.Context(), in.config()); err != nil {
		httputil.WriteGatewayError(w, reqID, err)
		return
	}
	svc, err := h.gw.GetService(in.ID)
	if err != nil {
		httputil.WriteGatewayError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, viewService(svc))
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.gw.GetService(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteGatewayError(w, w.Header().Get("X-Request-ID"), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewService(svc))
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var in servicePatch
	if !decode(w, r, &in) {
		return
	}
	svc, err := h.gw.UpdateService(r.Context(), chi.URLParam(r, "id"), in.update())
	if err != nil {
		httputil.WriteGatewayError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewService(svc))
}

func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.RemoveService(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteGatewayError(w, w.Header().Get("X-Request-ID"), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnableService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.gw.EnableService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteGatewayError(w, w.Header().Get("X-Request-ID"), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewService(svc))
}

func (h *Handler) DisableService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.gw.DisableService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteGatewayError(w, w.Header().Get("X-Request-ID"), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewService(svc))
}

type gatewayMetricsView struct {
	TotalRequests int64     `json:"total_requests"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	CacheHits     int64     `json:"cache_hits"`
	Cancelled     int64     `json:"cancelled"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	AvgRetryCount float64   `json:"avg_retry_count"`
	LastRequestAt time.Time `json:"last_request_at"`
}

type serviceMetricsView struct {
	ServiceID     string    `json:"service_id"`
	TotalRequests int64     `json:"total_requests"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	AvgRetryCount float64   `json:"avg_retry_count"`
	LastUsedAt    time.Time `json:"last_used_at"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func viewServiceMetrics(m telemetry.ServiceMetrics) serviceMetricsView {
	return serviceMetricsView{
		ServiceID:     m.ServiceID,
		TotalRequests: m.TotalRequests,
		SuccessCount:  m.SuccessCount,
		FailureCount:  m.FailureCount,
		AvgLatencyMs:  ms(m.AvgLatency),
		AvgRetryCount: m.AvgRetryCount,
		LastUsedAt:    m.LastUsedAt,
	}
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m := h.gw.GetMetrics()
	httputil.WriteJSON(w, http.StatusOK, gatewayMetricsView{
		TotalRequests: m.TotalRequests,
		SuccessCount:  m.SuccessCount,
		FailureCount:  m.FailureCount,
		CacheHits:     m.CacheHits,
		Cancelled:     m.Cancelled,
		AvgLatencyMs:  ms(m.AvgLatency),
		AvgRetryCount: m.AvgRetryCount,
		LastRequestAt: m.LastRequestAt,
	})
}

func (h *Handler) ListServiceMetrics(w http.ResponseWriter, r *http.Request) {
	all := h.gw.ServiceMetrics()
	out := make([]serviceMetricsView, 0, len(all))
	for _, m := range all {
		out = append(out, viewServiceMetrics(m))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"object": "list", "data": out})
}

func (h *Handler) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.gw.GetServiceMetrics(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteGatewayError(w, w.Header().Get("X-Request-ID"), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewServiceMetrics(m))
}

type configView struct {
	LoadBalancing        bool  `json:"load_balancing"`
	Failover             bool  `json:"failover"`
	Caching              bool  `json:"caching"`
	RateLimiting         bool  `json:"rate_limiting"`
	RateLimitBlocking    bool  `json:"rate_limit_blocking"`
	CacheTTLMs           int64 `json:"cache_ttl_ms"`
	RateLimitWindowMs    int64 `json:"rate_limit_window_ms"`
	RateLimitMaxRequests int64 `json:"rate_limit_max_requests"`
}

func viewConfig(c config.GatewayConfig) configView {
	return configView{
		LoadBalancing:        c.LoadBalancing,
		Failover:             c.Failover,
		Caching:              c.Caching,
		RateLimiting:         c.RateLimiting,
		RateLimitBlocking:    c.RateLimitBlocking,
		CacheTTLMs:           c.CacheTTL.Milliseconds(),
		RateLimitWindowMs:    c.RateLimitWindow.Milliseconds(),
		RateLimitMaxRequests: c.RateLimitMaxRequests,
	}
}

// configPatch updates only the fields it sets.
type configPatch struct {
	LoadBalancing        *bool  `json:"load_balancing"`
	Failover             *bool  `json:"failover"`
	Caching              *bool  `json:"caching"`
	RateLimiting         *bool  `json:"rate_limiting"`
	RateLimitBlocking    *bool  `json:"rate_limit_blocking"`
	CacheTTLMs           *int64 `json:"cache_ttl_ms"`
	RateLimitWindowMs    *int64 `json:"rate_limit_window_ms"`
	RateLimitMaxRequests *int64 `json:"rate_limit_max_requests"`
}

func (p configPatch) apply(c config.GatewayConfig) config.GatewayConfig {
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setBool(&c.LoadBalancing, p.LoadBalancing)
	setBool(&c.Failover, p.Failover)
	setBool(&c.Caching, p.Caching)
	setBool(&c.RateLimiting, p.RateLimiting)
	setBool(&c.RateLimitBlocking, p.RateLimitBlocking)
	if p.CacheTTLMs != nil {
		c.CacheTTL = time.Duration(*p.CacheTTLMs) * time.Millisecond
	}
	if p.RateLimitWindowMs != nil {
		c.RateLimitWindow = time.Duration(*p.RateLimitWindowMs) * time.Millisecond
	}
	if p.RateLimitMaxRequests != nil {
		c.RateLimitMaxRequests = *p.RateLimitMaxRequests
	}
	return c
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, viewConfig(h.gw.Config()))
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	var in configPatch
	if !decode(w, r, &in) {
		return
	}
	next := in.apply(h.gw.Config())
	if err := h.gw.UpdateConfig(r.Context(), next); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewConfig(h.gw.Config()))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.Reset(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset", "warning": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
