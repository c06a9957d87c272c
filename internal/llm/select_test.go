package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactoryClaude(t *testing.T) {
	f, err := NewFactory(context.Background(), Settings{
		Provider:        ProviderClaude,
		AnthropicAPIKey: "test-key",
		ClaudeModel:     "claude-haiku-4-5-20251001",
	})
	require.NoError(t, err)

	c1, err := f()
	require.NoError(t, err)
	c2, err := f()
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5-20251001", c1.Model())
	assert.NotSame(t, c1, c2, "each call must return a fresh client")
}

func TestNewFactoryOpenAI(t *testing.T) {
	f, err := NewFactory(context.Background(), Settings{
		Provider:     ProviderOpenAI,
		OpenAIAPIKey: "test-key",
		OpenAIModel:  "gpt-4o-mini",
	})
	require.NoError(t, err)

	c, err := f()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())
}

func TestNewFactoryMissingKey(t *testing.T) {
	_, err := NewFactory(context.Background(), Settings{Provider: ProviderClaude})
	assert.Error(t, err)

	_, err = NewFactory(context.Background(), Settings{Provider: ProviderOpenAI})
	assert.Error(t, err)
}

func TestNewFactoryUnknownProvider(t *testing.T) {
	_, err := NewFactory(context.Background(), Settings{Provider: "llama"})
	assert.Error(t, err)
}

type staticClient struct{ model string }

func (s *staticClient) Complete(context.Context, Request) (string, error) { return "", nil }
func (s *staticClient) Stream(context.Context, Request, DeltaHandler) error {
	return nil
}
func (s *staticClient) Model() string { return s.model }

func TestStaticFactory(t *testing.T) {
	c := &staticClient{model: "m"}
	got, err := Static(c)()
	require.NoError(t, err)
	assert.Same(t, c, got)
}
