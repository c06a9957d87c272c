package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by DISCOVERY_MODEL_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderAuto   = "auto"
)

// Config is the runtime configuration of the discovery service.
type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	Provider        string `yaml:"provider"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	ClaudeModel     string `yaml:"claude_model"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiModel     string `yaml:"gemini_model"`

	FrontendURL string `yaml:"frontend_url"`
	SentryDSN   string `yaml:"sentry_dsn"`

	DBPath         string        `yaml:"db_path"`
	KnowledgeDir   string        `yaml:"knowledge_dir"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MonthlyLimit   int           `yaml:"monthly_limit"`
	ToolEvents     bool          `yaml:"tool_events"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:           "8080",
		Env:            "production",
		Provider:       ProviderAuto,
		ClaudeModel:    "claude-haiku-4-5-20251001",
		OpenAIModel:    "gpt-4o-mini",
		GeminiModel:    "gemini-2.5-flash-lite",
		DBPath:         "data/discovery.db",
		KnowledgeDir:   "knowledge",
		RequestTimeout: 3 * time.Minute,
	}
}

// Load reads .env (if present), the process environment and, when
// DISCOVERY_CONFIG names a file, a YAML overlay on top.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := FromEnv(os.Getenv)

	if path := os.Getenv("DISCOVERY_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from an environment lookup function.
func FromEnv(getenv func(string) string) Config {
	cfg := Defaults()

	setString(&cfg.Port, getenv("PORT"))
	setString(&cfg.Env, getenv("FLASK_ENV"))
	setString(&cfg.Env, getenv("APP_ENV"))
	setString(&cfg.Provider, strings.ToLower(getenv("DISCOVERY_MODEL_PROVIDER")))
	setString(&cfg.OpenAIAPIKey, getenv("OPENAI_API_KEY"))
	setString(&cfg.AnthropicAPIKey, getenv("ANTHROPIC_API_KEY"))
	setString(&cfg.GeminiAPIKey, getenv("GEMINI_API_KEY"))
	setString(&cfg.ClaudeModel, getenv("CLAUDE_MODEL_NAME"))
	setString(&cfg.OpenAIModel, getenv("OPENAI_MODEL_NAME"))
	setString(&cfg.GeminiModel, getenv("GEMINI_MODEL_NAME"))
	setString(&cfg.FrontendURL, getenv("FRONTEND_URL"))
	setString(&cfg.SentryDSN, getenv("SENTRY_DSN"))
	setString(&cfg.DBPath, getenv("DISCOVERY_DB_PATH"))
	setString(&cfg.KnowledgeDir, getenv("DISCOVERY_KNOWLEDGE_DIR"))

	if v := getenv("DISCOVERY_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := getenv("DISCOVERY_MONTHLY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MonthlyLimit = n
		}
	}
	if v := getenv("DISCOVERY_TOOL_EVENTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ToolEvents = b
		}
	}

	return cfg
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Port, file.Port)
	setString(&c.Env, file.Env)
	setString(&c.Provider, strings.ToLower(file.Provider))
	setString(&c.OpenAIAPIKey, file.OpenAIAPIKey)
	setString(&c.AnthropicAPIKey, file.AnthropicAPIKey)
	setString(&c.GeminiAPIKey, file.GeminiAPIKey)
	setString(&c.ClaudeModel, file.ClaudeModel)
	setString(&c.OpenAIModel, file.OpenAIModel)
	setString(&c.GeminiModel, file.GeminiModel)
	setString(&c.FrontendURL, file.FrontendURL)
	setString(&c.SentryDSN, file.SentryDSN)
	setString(&c.DBPath, file.DBPath)
	setString(&c.KnowledgeDir, file.KnowledgeDir)
	if file.RequestTimeout > 0 {
		c.RequestTimeout = file.RequestTimeout
	}
	if file.MonthlyLimit > 0 {
		c.MonthlyLimit = file.MonthlyLimit
	}
	if file.ToolEvents {
		c.ToolEvents = true
	}
	return nil
}

// Validate checks the provider selection.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderAuto:
	default:
		return fmt.Errorf("DISCOVERY_MODEL_PROVIDER must be one of openai, claude, gemini, auto; got %q", c.Provider)
	}
	return nil
}

// ResolvedProvider applies the auto rule: claude when an Anthropic key is
// present, else openai, else gemini when only a Gemini key is configured.
func (c Config) ResolvedProvider() string {
	if c.Provider != ProviderAuto {
		return c.Provider
	}
	switch {
	case c.AnthropicAPIKey != "":
		return ProviderClaude
	case c.OpenAIAPIKey == "" && c.GeminiAPIKey != "":
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
