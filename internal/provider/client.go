// Package provider holds one Client implementation per AI vendor family.
// Every client turns a canonical types.Request into the vendor's wire format
// and extracts a normalized result (text, embedding vector, image URL or
// base64 audio) from the vendor's reply.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/af-corp/ai-gateway/internal/types"
)

// ErrUnsupportedCapability is returned when a client is asked for a
// capability its vendor family does not offer.
var ErrUnsupportedCapability = errors.New("capability not supported by provider")

// Client executes a single request against one configured service.
type Client interface {
	Name() string
	Execute(ctx context.Context, req *types.Request) (any, error)
}

// Factory builds a Client for a service configuration.
type Factory func(cfg types.ServiceConfig) (Client, error)

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// New is the default Factory. It picks the client variant by provider kind.
func New(cfg types.ServiceConfig) (Client, error) {
	httpClient := newHTTPClient(cfg.EffectiveTimeout())

	switch cfg.Provider {
	case types.ProviderOpenAI, types.ProviderAzure, types.ProviderSelfHosted:
		return NewOpenAIClient(cfg, httpClient), nil
	case types.ProviderAnthropic:
		return NewAnthropicClient(cfg, httpClient), nil
	case types.ProviderGoogle:
		return NewGoogleClient(cfg, httpClient), nil
	case types.ProviderAWS:
		return NewBedrockClient(context.Background(), cfg, httpClient)
	case types.ProviderCustom:
		return NewCustomClient(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// postJSON sends body as JSON and decodes a 2xx reply into out.
func postJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Provider: name, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
