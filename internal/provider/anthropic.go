package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/af-corp/ai-gateway/internal/types"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicClient handles communication with the Anthropic Messages API.
type AnthropicClient struct {
	cfg    types.ServiceConfig
	client *http.Client
}

func NewAnthropicClient(cfg types.ServiceConfig, client *http.Client) *AnthropicClient {
	return &AnthropicClient{cfg: cfg, client: client}
}

func (a *AnthropicClient) Name() string { return "anthropic" }

func (a *AnthropicClient) Execute(ctx context.Context, req *types.Request) (any, error) {
	switch req.Capability {
	case types.CapChat, types.CapCompletion, types.CapMultimodal:
	default:
		return nil, fmt.Errorf("anthropic %s: %w", req.Capability, ErrUnsupportedCapability)
	}

	body := buildAnthropicBody(a.cfg.Model, req, params(a.cfg, req))

	var resp anthropicResponseBody
	url := strings.TrimRight(a.cfg.Endpoint, "/") + "/messages"
	err := postJSON(ctx, a.client, "anthropic", url, map[string]string{
		"x-api-key":         a.cfg.Credential,
		"anthropic-version": anthropicVersion,
	}, body, &resp)
	if err != nil {
		return nil, err
	}
	return resp.text()
}

// buildAnthropicBody is shared with the Bedrock client, which sends the same
// Messages payload through InvokeModel.
func buildAnthropicBody(model string, req *types.Request, p map[string]any) anthropicRequestBody {
	maxTokens := anthropicMaxTokens
	if v, ok := intParam(p, "max_tokens", "maxTokens"); ok && v > 0 {
		maxTokens = v
	}

	body := anthropicRequestBody{
		Model:     model,
		System:    req.ContextString("system"),
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Payload}},
	}
	if v, ok := floatParam(p, "temperature"); ok {
		body.Temperature = &v
	}
	if v, ok := floatParam(p, "top_p", "topP"); ok {
		body.TopP = &v
	}
	if v, ok := intParam(p, "top_k", "topK"); ok && v > 0 {
		body.TopK = &v
	}
	return body
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequestBody struct {
	AnthropicVersion string             `json:"anthropic_version,omitempty"`
	Model            string             `json:"model,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	System           string             `json:"system,omitempty"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	TopK             *int               `json:"top_k,omitempty"`
}

type anthropicResponseBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (r anthropicResponseBody) text() (string, error) {
	for _, block := range r.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic response has no text content")
}
