package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/af-corp/ai-gateway/internal/types"
)

// CustomClient speaks a minimal generate protocol:
// POST {endpoint}/generate {"model", "prompt", ...parameters} -> {"response": ...}.
// Any capability is forwarded; the server decides what it supports.
type CustomClient struct {
	cfg    types.ServiceConfig
	client *http.Client
}

func NewCustomClient(cfg types.ServiceConfig, client *http.Client) *CustomClient {
	return &CustomClient{cfg: cfg, client: client}
}

func (c *CustomClient) Name() string { return "custom" }

func (c *CustomClient) Execute(ctx context.Context, req *types.Request) (any, error) {
	body := map[string]any{
		"model":      c.cfg.Model,
		"prompt":     req.Payload,
		"capability": string(req.Capability),
	}
	passthrough(body, params(c.cfg, req))

	headers := map[string]string{}
	if c.cfg.Credential != "" {
		headers["Authorization"] = "Bearer " + c.cfg.Credential
	}

	var resp struct {
		Response any `json:"response"`
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/generate"
	if err := postJSON(ctx, c.client, "custom", url, headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("custom response has no response field")
	}
	return resp.Response, nil
}
