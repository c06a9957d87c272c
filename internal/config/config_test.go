package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envOf(nil))
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderAuto, cfg.Provider)
	assert.Equal(t, 3*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, "knowledge", cfg.KnowledgeDir)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envOf(map[string]string{
		"PORT":                      "9000",
		"DISCOVERY_MODEL_PROVIDER":  "OpenAI",
		"CLAUDE_MODEL_NAME":         "claude-x",
		"DISCOVERY_REQUEST_TIMEOUT": "45s",
		"DISCOVERY_MONTHLY_LIMIT":   "5",
		"DISCOVERY_TOOL_EVENTS":     "true",
		"FLASK_ENV":                 "development",
	}))
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "claude-x", cfg.ClaudeModel)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MonthlyLimit)
	assert.True(t, cfg.ToolEvents)
	assert.Equal(t, "development", cfg.Env)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := FromEnv(envOf(map[string]string{"DISCOVERY_MODEL_PROVIDER": "llama"}))
	assert.Error(t, cfg.Validate())
}

func TestResolvedProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"auto with anthropic key", Config{Provider: ProviderAuto, AnthropicAPIKey: "a", OpenAIAPIKey: "o"}, ProviderClaude},
		{"auto with openai key", Config{Provider: ProviderAuto, OpenAIAPIKey: "o"}, ProviderOpenAI},
		{"auto with no keys", Config{Provider: ProviderAuto}, ProviderOpenAI},
		{"auto with gemini only", Config{Provider: ProviderAuto, GeminiAPIKey: "g"}, ProviderGemini},
		{"explicit wins", Config{Provider: ProviderOpenAI, AnthropicAPIKey: "a"}, ProviderOpenAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ResolvedProvider())
		})
	}
}

func TestOverlayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nprovider: claude\nmonthly_limit: 3\nrequest_timeout: 90s\n"), 0o644))

	cfg := Defaults()
	require.NoError(t, cfg.overlayFile(path))
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, ProviderClaude, cfg.Provider)
	assert.Equal(t, 3, cfg.MonthlyLimit)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "knowledge", cfg.KnowledgeDir)
}
