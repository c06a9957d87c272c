// Package app assembles the discovery service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/a2a"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/api"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/budget"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/cache"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/config"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/knowledge"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/prompts"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/tools"
)

// App is the wired service.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     *store.SQLiteStore
	Knowledge *knowledge.Loader
	Pipeline  *discovery.Pipeline
	Handler   *api.Handler
	A2A       *a2a.A2AHandler

	sentry  bool
	closers []func() error
}

// Option overrides parts of the graph, mostly for tests.
type Option func(*options)

type options struct {
	clients llm.Factory
}

// WithClients replaces the provider selected by the configuration.
func WithClients(f llm.Factory) Option {
	return func(o *options) { o.clients = f }
}

// New builds every component. The caller must Close the result.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			AttachStacktrace: true,
			TracesSampleRate: 0.1,
		})
		if err != nil {
			logger.Warn("Sentry disabled", zap.Error(err))
		} else {
			a.sentry = true
			a.closers = append(a.closers, func() error {
				sentry.Flush(2 * time.Second)
				return nil
			})
		}
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	loader, err := knowledge.NewLoader(cfg.KnowledgeDir, knowledge.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Knowledge = loader
	a.closers = append(a.closers, func() error { loader.Close(); return nil })

	clients := o.clients
	if clients == nil {
		clients, err = llm.NewFactory(ctx, Settings(cfg))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configure model provider: %w", err)
		}
	}
	model := modelName(cfg)
	if c, err := clients(); err == nil {
		model = c.Model()
		// Shared clients such as Gemini's hold connections until closed.
		if closer, ok := c.(interface{ Close() }); ok {
			a.closers = append(a.closers, func() error { closer.Close(); return nil })
		}
	}

	toolCache := cache.NewTools(st, cache.ToolsTTL, logger)
	precomputer := tools.NewPrecomputer(loader, clients,
		tools.WithCache(toolCache),
		tools.WithLogger(logger.Named("tools")),
	)

	pipeline, err := discovery.NewPipeline(discovery.Deps{
		Clients:   clients,
		Knowledge: precomputer,
		Cache:     cache.NewDiscovery(st, cache.DiscoveryTTL, logger),
		Runs:      st,
		Prompts:   prompts.NewBuilder(budget.NewCounter(model)),
		Logger:    logger.Named("discovery"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = pipeline

	a.Handler = api.NewHandler(pipeline, st, api.Config{
		MonthlyLimit:   cfg.MonthlyLimit,
		RequestTimeout: cfg.RequestTimeout,
		ToolEvents:     cfg.ToolEvents,
	}, logger.Named("api"))
	a.A2A = a2a.NewA2AHandler(pipeline, logger.Named("a2a"))

	logger.Info("Discovery service assembled",
		zap.String("provider", cfg.ResolvedProvider()),
		zap.String("model", model),
		zap.String("db_path", cfg.DBPath),
		zap.String("knowledge_dir", cfg.KnowledgeDir),
		zap.Bool("sentry", a.sentry),
	)
	return a, nil
}

// Router returns the HTTP surface of the app.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.RouterConfig{
		FrontendURL: a.Config.FrontendURL,
		Sentry:      a.sentry,
		Development: logging.IsDevelopment(a.Config.Env),
	}, a.Handler, a.A2A, a.Logger.Named("http"))
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Settings maps the configuration to provider settings.
func Settings(cfg config.Config) llm.Settings {
	return llm.Settings{
		Provider:        cfg.ResolvedProvider(),
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		ClaudeModel:     cfg.ClaudeModel,
		GeminiModel:     cfg.GeminiModel,
	}
}

func modelName(cfg config.Config) string {
	switch cfg.ResolvedProvider() {
	case config.ProviderClaude:
		return cfg.ClaudeModel
	case config.ProviderGemini:
		return cfg.GeminiModel
	default:
		return cfg.OpenAIModel
	}
}
