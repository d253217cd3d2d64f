package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/af-corp/ai-gateway/internal/types"
)

// GoogleClient talks to the Gemini generative language API. The key travels
// in the x-goog-api-key header rather than the query string so it never
// shows up in URLs.
type GoogleClient struct {
	cfg    types.ServiceConfig
	client *http.Client
}

func NewGoogleClient(cfg types.ServiceConfig, client *http.Client) *GoogleClient {
	return &GoogleClient{cfg: cfg, client: client}
}

func (g *GoogleClient) Name() string { return "google" }

func (g *GoogleClient) Execute(ctx context.Context, req *types.Request) (any, error) {
	switch req.Capability {
	case types.CapChat, types.CapCompletion, types.CapMultimodal:
		return g.generate(ctx, req)
	case types.CapEmbedding:
		return g.embed(ctx, req)
	default:
		return nil, fmt.Errorf("google %s: %w", req.Capability, ErrUnsupportedCapability)
	}
}

func (g *GoogleClient) url(method string) string {
	return fmt.Sprintf("%s/models/%s:%s", strings.TrimRight(g.cfg.Endpoint, "/"), g.cfg.Model, method)
}

func (g *GoogleClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.cfg.Credential}
}

func (g *GoogleClient) generate(ctx context.Context, req *types.Request) (any, error) {
	p := params(g.cfg, req)

	body := geminiGenerateBody{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Payload}}}},
	}
	if system := req.ContextString("system"); system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	gc := &geminiGenerationConfig{}
	if v, ok := floatParam(p, "temperature"); ok {
		gc.Temperature = &v
	}
	if v, ok := intParam(p, "max_output_tokens", "maxOutputTokens", "max_tokens", "maxTokens"); ok {
		gc.MaxOutputTokens = &v
	}
	if v, ok := floatParam(p, "top_p", "topP"); ok {
		gc.TopP = &v
	}
	if v, ok := intParam(p, "top_k", "topK"); ok {
		gc.TopK = &v
	}
	body.GenerationConfig = gc

	var resp geminiGenerateResponse
	if err := postJSON(ctx, g.client, "google", g.url("generateContent"), g.headers(), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("google response has no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GoogleClient) embed(ctx context.Context, req *types.Request) (any, error) {
	body := geminiEmbedBody{Content: geminiContent{Parts: []geminiPart{{Text: req.Payload}}}}

	var resp geminiEmbedResponse
	if err := postJSON(ctx, g.client, "google", g.url("embedContent"), g.headers(), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("google embedding response is empty")
	}
	return resp.Embedding.Values, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

type geminiGenerateBody struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiEmbedBody struct {
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}
