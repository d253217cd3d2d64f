package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/af-corp/ai-gateway/internal/types"
)

// OpenAIClient talks to OpenAI, Azure OpenAI and any self-hosted server that
// exposes the OpenAI API (vLLM, Ollama, LM Studio).
type OpenAIClient struct {
	cfg    types.ServiceConfig
	client *openai.Client
}

func NewOpenAIClient(cfg types.ServiceConfig, httpClient *http.Client) *OpenAIClient {
	var oc openai.ClientConfig
	switch cfg.Provider {
	case types.ProviderAzure:
		oc = openai.DefaultAzureConfig(cfg.Credential, cfg.Endpoint)
		// Azure deployments are addressed by the configured model name as-is.
		oc.AzureModelMapperFunc = func(model string) string { return model }
		if v := stringParam(cfg.Parameters, "api_version", "apiVersion"); v != "" {
			oc.APIVersion = v
		}
	default:
		oc = openai.DefaultConfig(cfg.Credential)
		if cfg.Endpoint != "" {
			oc.BaseURL = cfg.Endpoint
		}
	}
	oc.HTTPClient = httpClient

	return &OpenAIClient{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (c *OpenAIClient) Name() string { return string(c.cfg.Provider) }

func (c *OpenAIClient) Execute(ctx context.Context, req *types.Request) (any, error) {
	p := params(c.cfg, req)

	switch req.Capability {
	case types.CapChat, types.CapMultimodal:
		return c.chat(ctx, req, p)
	case types.CapCompletion:
		return c.completion(ctx, req, p)
	case types.CapEmbedding:
		return c.embedding(ctx, req)
	case types.CapImage:
		return c.image(ctx, req, p)
	case types.CapAudio:
		return c.speech(ctx, req, p)
	default:
		return nil, fmt.Errorf("%s %s: %w", c.Name(), req.Capability, ErrUnsupportedCapability)
	}
}

func (c *OpenAIClient) chat(ctx context.Context, req *types.Request, p map[string]any) (any, error) {
	var messages []openai.ChatCompletionMessage
	if system := req.ContextString("system"); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Payload})

	oaiReq := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	if v, ok := floatParam(p, "temperature"); ok {
		oaiReq.Temperature = float32(v)
	}
	if v, ok := intParam(p, "max_tokens", "maxTokens"); ok {
		oaiReq.MaxTokens = v
	}
	if v, ok := floatParam(p, "top_p", "topP"); ok {
		oaiReq.TopP = float32(v)
	}
	if v, ok := floatParam(p, "frequency_penalty", "frequencyPenalty"); ok {
		oaiReq.FrequencyPenalty = float32(v)
	}
	if v, ok := floatParam(p, "presence_penalty", "presencePenalty"); ok {
		oaiReq.PresencePenalty = float32(v)
	}

	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat completion: empty choices", c.Name())
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) completion(ctx context.Context, req *types.Request, p map[string]any) (any, error) {
	oaiReq := openai.CompletionRequest{
		Model:  c.cfg.Model,
		Prompt: req.Payload,
	}
	if v, ok := floatParam(p, "temperature"); ok {
		oaiReq.Temperature = float32(v)
	}
	if v, ok := intParam(p, "max_tokens", "maxTokens"); ok {
		oaiReq.MaxTokens = v
	}
	if v, ok := floatParam(p, "top_p", "topP"); ok {
		oaiReq.TopP = float32(v)
	}

	resp, err := c.client.CreateCompletion(ctx, oaiReq)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s completion: empty choices", c.Name())
	}
	return resp.Choices[0].Text, nil
}

func (c *OpenAIClient) embedding(ctx context.Context, req *types.Request) (any, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{req.Payload},
		Model: openai.EmbeddingModel(c.cfg.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", c.Name(), err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s embeddings: empty data", c.Name())
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) image(ctx context.Context, req *types.Request, p map[string]any) (any, error) {
	size := stringParam(p, "size")
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Payload,
		Model:          c.cfg.Model,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", c.Name(), err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%s image: empty data", c.Name())
	}
	return resp.Data[0].URL, nil
}

// speech returns synthesized audio as base64 so it survives JSON transport
// and the response cache.
func (c *OpenAIClient) speech(ctx context.Context, req *types.Request, p map[string]any) (any, error) {
	voice := stringParam(p, "voice")
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(c.cfg.Model),
		Input: req.Payload,
		Voice: openai.SpeechVoice(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("%s speech: %w", c.Name(), err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s speech: %w", c.Name(), err)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}
