package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/cache"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/knowledge"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// DefaultWorkers bounds the tool calls of one precompute run.
const DefaultWorkers = 10

// StaticSource yields static knowledge blocks for an interest area.
type StaticSource interface {
	LoadArea(area, sub string) map[string]string
}

// BundleCache stores merged bundles between runs.
type BundleCache interface {
	Get(ctx context.Context, key string) (map[string]string, bool)
	Set(ctx context.Context, key string, params map[string]string, blocks map[string]string)
}

// Bundle is the merged knowledge for one interest area.
type Bundle struct {
	Blocks    map[string]string
	Static    []string
	Durations map[string]time.Duration
	Errors    map[string]string
	FromCache bool
}

// Target is what the tools are asked about.
type Target struct {
	Area string
	Sub  string
}

func (t Target) topic() string {
	if t.Sub != "" {
		return t.Area + " - " + t.Sub
	}
	return t.Area
}

func (t Target) segment() string {
	if t.Sub != "" {
		return t.Sub
	}
	return "general market"
}

func (t Target) idea() string {
	return "an early-stage startup in " + t.topic()
}

type toolFunc func(ctx context.Context, c llm.Client, t Target) string

// registry maps each block to the tool that produces it.
var registry = map[string]toolFunc{
	models.BlockMarketTrends: func(ctx context.Context, c llm.Client, t Target) string {
		return MarketTrends(ctx, c, t.topic(), t.segment())
	},
	models.BlockCompetitors: func(ctx context.Context, c llm.Client, t Target) string {
		return Competitors(ctx, c, t.idea(), t.Area)
	},
	models.BlockMarketSize: func(ctx context.Context, c llm.Client, t Target) string {
		return MarketSize(ctx, c, t.topic(), "early adopters in "+t.segment())
	},
	models.BlockRisks: func(ctx context.Context, c llm.Client, t Target) string {
		return Risks(ctx, c, t.idea())
	},
	models.BlockValidation: func(ctx context.Context, c llm.Client, t Target) string {
		return Validation(ctx, c, t.idea(), t.segment()+" customers", "subscription or service")
	},
	models.BlockCosts: func(_ context.Context, _ llm.Client, t Target) string {
		return Costs(t.topic(), "lean")
	},
	models.BlockRevenue: func(ctx context.Context, c llm.Client, t Target) string {
		return Revenue(ctx, c, "subscription or service", t.segment()+" customers", "tiered pricing")
	},
	models.BlockViability: func(ctx context.Context, c llm.Client, t Target) string {
		return Viability(ctx, c, t.idea(), "lean, under $5,000", "first paying customers within 6 months", "12 months")
	},
	models.BlockPersona: func(ctx context.Context, c llm.Client, t Target) string {
		return Persona(ctx, c, t.idea(), t.segment())
	},
	models.BlockValidationQuestions: func(ctx context.Context, c llm.Client, t Target) string {
		return ValidationQuestions(ctx, c, t.idea())
	},
}

// Precomputer assembles the knowledge bundle for an interest area from the
// cached bundle, static files and tool calls, in that order.
type Precomputer struct {
	static  StaticSource
	cache   BundleCache
	clients llm.Factory
	workers int
	logger  *zap.Logger
}

// Option configures a Precomputer.
type Option func(*Precomputer)

func WithCache(c BundleCache) Option { return func(p *Precomputer) { p.cache = c } }

func WithWorkers(n int) Option { return func(p *Precomputer) { p.workers = n } }

func WithLogger(l *zap.Logger) Option { return func(p *Precomputer) { p.logger = l } }

// NewPrecomputer creates a precomputer. Without WithCache every run
// recomputes.
func NewPrecomputer(static StaticSource, clients llm.Factory, opts ...Option) *Precomputer {
	p := &Precomputer{static: static, clients: clients, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	p.logger = logging.OrNop(p.logger)
	return p
}

// CacheKey is the bundle cache key of an interest area.
func CacheKey(area, sub string) string {
	key := knowledge.NormalizeKey(area)
	if s := knowledge.NormalizeKey(sub); s != "" {
		key += "_" + s
	}
	return cache.ToolsKey(key)
}

// Run assembles the bundle and waits for every tool.
func (p *Precomputer) Run(ctx context.Context, area, sub string) Bundle {
	b, err := p.Start(ctx, area, sub).Wait(ctx)
	if err != nil {
		return FallbackBundle()
	}
	return b
}

// FallbackBundle holds only fallback blocks.
func FallbackBundle() Bundle {
	return Bundle{
		Blocks:    Fallbacks(),
		Durations: map[string]time.Duration{},
		Errors:    map[string]string{},
	}
}

// Pending is a precompute in progress.
type Pending struct {
	partial     map[string]string
	completions chan string
	done        chan struct{}
	bundle      Bundle
}

// Partial returns the blocks known before any tool ran.
func (p *Pending) Partial() map[string]string {
	out := make(map[string]string, len(p.partial))
	for k, v := range p.partial {
		out[k] = v
	}
	return out
}

// Completions yields each tool name as it finishes and closes when all have.
func (p *Pending) Completions() <-chan string {
	return p.completions
}

// Wait blocks until the bundle is complete or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Bundle, error) {
	select {
	case <-p.done:
		return p.bundle, nil
	case <-ctx.Done():
		return Bundle{}, ctx.Err()
	}
}

// Start begins assembling the bundle and returns without waiting for tools.
func (p *Precomputer) Start(ctx context.Context, area, sub string) *Pending {
	key := CacheKey(area, sub)

	if p.cache != nil {
		if blocks, ok := p.cache.Get(ctx, key); ok {
			FillFallbacks(blocks)
			return finished(Bundle{
				Blocks:    blocks,
				Durations: map[string]time.Duration{},
				Errors:    map[string]string{},
				FromCache: true,
			})
		}
	}

	blocks := map[string]string{}
	var static, missing []string
	for name, v := range p.static.LoadArea(area, sub) {
		if models.IsBlock(name) && strings.TrimSpace(v) != "" {
			blocks[name] = v
		}
	}
	for _, name := range models.AllBlocks {
		if _, ok := blocks[name]; ok {
			static = append(static, name)
		} else {
			missing = append(missing, name)
		}
	}

	pending := &Pending{
		partial:     copyBlocks(blocks),
		completions: make(chan string, len(missing)),
		done:        make(chan struct{}),
	}

	go func() {
		defer close(pending.done)
		defer close(pending.completions)

		b := p.runTools(ctx, Target{Area: area, Sub: sub}, blocks, missing, pending.completions)
		b.Static = static
		FillFallbacks(b.Blocks)
		pending.bundle = b

		// A cancelled run is mostly fallbacks; do not pin it for a day.
		if p.cache != nil && ctx.Err() == nil {
			p.cache.Set(context.WithoutCancel(ctx), key, map[string]string{
				"interest_area":     area,
				"sub_interest_area": sub,
			}, b.Blocks)
		}
	}()
	return pending
}

func (p *Precomputer) runTools(ctx context.Context, target Target, blocks map[string]string, missing []string, completions chan<- string) Bundle {
	var mu sync.Mutex
	b := Bundle{
		Blocks:    blocks,
		Durations: make(map[string]time.Duration, len(missing)),
		Errors:    map[string]string{},
	}

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, name := range missing {
		g.Go(func() error {
			start := time.Now()
			result := p.invoke(ctx, name, target)
			elapsed := time.Since(start)

			mu.Lock()
			b.Durations[name] = elapsed
			if IsError(result) {
				b.Errors[name] = result
			} else {
				b.Blocks[name] = result
			}
			mu.Unlock()

			if IsError(result) {
				p.logger.Warn("Tool failed", zap.String("tool", name), zap.String("error", result))
			} else {
				p.logger.Debug("Tool finished", zap.String("tool", name), zap.Duration("elapsed", elapsed))
			}
			completions <- name
			// Failures stay local to the tool.
			return nil
		})
	}
	_ = g.Wait()
	return b
}

func (p *Precomputer) invoke(ctx context.Context, name string, target Target) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("%s %s panicked: %v", errorPrefix, name, r)
		}
	}()

	fn := registry[name]
	if name == models.BlockCosts {
		return fn(ctx, nil, target)
	}
	c, err := p.clients()
	if err != nil {
		return fmt.Sprintf("%s %s: no model client: %v", errorPrefix, name, err)
	}
	return fn(ctx, c, target)
}

func finished(b Bundle) *Pending {
	p := &Pending{
		partial:     copyBlocks(b.Blocks),
		completions: make(chan string),
		done:        make(chan struct{}),
		bundle:      b,
	}
	close(p.completions)
	close(p.done)
	return p
}

func copyBlocks(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
