package llm

import (
	"context"
	"fmt"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Settings selects and configures one provider.
type Settings struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OpenAIModel     string
	ClaudeModel     string
	GeminiModel     string
	OpenAIBaseURL   string
	ClaudeBaseURL   string
}

// NewFactory returns a Factory producing fresh clients for the configured
// provider. Keys are checked once up front so misconfiguration fails at start.
func NewFactory(ctx context.Context, s Settings) (Factory, error) {
	switch s.Provider {
	case ProviderClaude:
		if _, err := NewAnthropicClient(s.AnthropicAPIKey, s.ClaudeModel, s.ClaudeBaseURL); err != nil {
			return nil, err
		}
		return func() (Client, error) {
			return NewAnthropicClient(s.AnthropicAPIKey, s.ClaudeModel, s.ClaudeBaseURL)
		}, nil

	case ProviderOpenAI:
		if _, err := NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel, s.OpenAIBaseURL); err != nil {
			return nil, err
		}
		return func() (Client, error) {
			return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel, s.OpenAIBaseURL)
		}, nil

	case ProviderGemini:
		// genai clients hold a connection pool; share one across requests.
		client, err := NewGeminiClient(ctx, s.GeminiAPIKey, s.GeminiModel)
		if err != nil {
			return nil, err
		}
		return Static(client), nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", s.Provider)
	}
}
