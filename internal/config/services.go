package config

import (
	"os"
	"time"

	"github.com/af-corp/ai-gateway/internal/types"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DefaultServices builds the seed catalog from environment credentials.
// A service without a credential is present but disabled.
func DefaultServices() []types.ServiceConfig {
	awsCredential := ""
	if ak, sk := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); ak != "" && sk != "" {
		awsCredential = ak + ":" + sk
	}

	services := []types.ServiceConfig{
		{
			ID:         "openai-gpt4",
			Name:       "OpenAI GPT-4",
			Provider:   types.ProviderOpenAI,
			Capability: types.CapChat,
			Endpoint:   env("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Credential: os.Getenv("OPENAI_API_KEY"),
			Model:      "gpt-4-turbo-preview",
			Parameters: map[string]any{
				"temperature":      0.7,
				"maxTokens":        2000,
				"topP":             1.0,
				"frequencyPenalty": 0.0,
				"presencePenalty":  0.0,
			},
			Priority:          10,
			FallbackServiceID: "anthropic-claude3",
		},
		{
			ID:         "anthropic-claude3",
			Name:       "Anthropic Claude 3",
			Provider:   types.ProviderAnthropic,
			Capability: types.CapChat,
			Endpoint:   "https://api.anthropic.com/v1",
			Credential: os.Getenv("ANTHROPIC_API_KEY"),
			Model:      "claude-3-opus-20240229",
			Parameters: map[string]any{
				"temperature": 0.7,
				"maxTokens":   2000,
				"topP":        1.0,
			},
			Priority:          9,
			FallbackServiceID: "google-gemini",
		},
		{
			ID:         "google-gemini",
			Name:       "Google Gemini Pro",
			Provider:   types.ProviderGoogle,
			Capability: types.CapChat,
			Endpoint:   "https://generativelanguage.googleapis.com/v1",
			Credential: os.Getenv("GOOGLE_API_KEY"),
			Model:      "gemini-pro",
			Parameters: map[string]any{
				"temperature":     0.7,
				"maxOutputTokens": 2000,
				"topP":            1.0,
				"topK":            40,
			},
			Priority:          8,
			FallbackServiceID: "azure-openai",
		},
		{
			ID:         "azure-openai",
			Name:       "Azure OpenAI",
			Provider:   types.ProviderAzure,
			Capability: types.CapChat,
			Endpoint:   env("AZURE_OPENAI_ENDPOINT", "https://your-resource.openai.azure.com"),
			Credential: os.Getenv("AZURE_OPENAI_API_KEY"),
			Model:      env("AZURE_OPENAI_DEPLOYMENT", "gpt-4"),
			Parameters: map[string]any{
				"temperature": 0.7,
				"maxTokens":   2000,
				"topP":        1.0,
			},
			Priority: 7,
		},
		{
			ID:         "aws-bedrock",
			Name:       "AWS Bedrock",
			Provider:   types.ProviderAWS,
			Capability: types.CapChat,
			Credential: awsCredential,
			Model:      "anthropic.claude-3-opus-20240229-v1:0",
			Parameters: map[string]any{
				"temperature": 0.7,
				"maxTokens":   2000,
				"topP":        1.0,
				"region":      env("AWS_REGION", "us-east-1"),
			},
			Priority: 6,
		},
	}

	for i := range services {
		services[i].Enabled = services[i].HasCredential()
		services[i].Timeout = 30 * time.Second
		services[i].MaxRetries = 3
	}
	return services
}

// MergeServices overlays file entries on the defaults by id. Entries with
// a new id are appended in file order.
func MergeServices(defaults, overrides []types.ServiceConfig) []types.ServiceConfig {
	out := make([]types.ServiceConfig, 0, len(defaults)+len(overrides))
	index := make(map[string]int, len(defaults))
	for _, s := range defaults {
		index[s.ID] = len(out)
		out = append(out, s)
	}
	for _, s := range overrides {
		if i, ok := index[s.ID]; ok {
			out[i] = s
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

// MergePersisted overlays catalog rows loaded from the store on the
// configured services. Stored rows carry no credential, so each keeps the
// configured credential of its id. A row left without a credential for a
// provider that needs one is disabled.
func MergePersisted(configured, persisted []types.ServiceConfig) []types.ServiceConfig {
	credentials := make(map[string]string, len(configured))
	for _, s := range configured {
		credentials[s.ID] = s.Credential
	}

	rows := make([]types.ServiceConfig, len(persisted))
	for i, s := range persisted {
		s.Credential = credentials[s.ID]
		if !s.HasCredential() && s.Provider.RequiresCredential() {
			s.Enabled = false
		}
		rows[i] = s
	}
	return MergeServices(configured, rows)
}
