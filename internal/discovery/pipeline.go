// Package discovery runs the two-stage startup discovery pipeline: a profile
// analysis and a knowledge assembly in parallel, then one research and
// recommendation call over both.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/cache"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/prompts"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/tools"
)

// DefaultStageTimeout bounds Stage 1 and knowledge assembly.
const DefaultStageTimeout = 60 * time.Second

// Knowledge starts the knowledge assembly for an interest area.
type Knowledge interface {
	Start(ctx context.Context, area, sub string) *tools.Pending
}

// OutputCache stores finished outputs per profile key.
type OutputCache interface {
	Get(ctx context.Context, key string, bypass bool) (models.Outputs, bool)
	Set(ctx context.Context, key string, p models.Profile, outputs map[string]string, bypass bool) bool
}

// RunRecorder persists delivered runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, r models.RunRecord) error
}

// Options are per-request settings.
type Options struct {
	RunID       string
	UserID      string
	CacheBypass bool
	// ToolEvents forwards tool completions to stream handlers.
	ToolEvents bool
}

// Metrics is the per-run timing record. Times are in seconds.
type Metrics struct {
	CacheHit           bool              `json:"cache_hit"`
	ToolPrecomputeTime float64           `json:"tool_precompute_time"`
	Stage1Time         float64           `json:"stage1_time"`
	LLMTime            float64           `json:"llm_time"`
	TotalTime          float64           `json:"total_time"`
	Stage1Tokens       int               `json:"stage1_tokens,omitempty"`
	Stage2Tokens       int               `json:"stage2_tokens,omitempty"`
	ToolErrors         map[string]string `json:"tool_errors,omitempty"`
}

// Result is a finished run.
type Result struct {
	RunID   string
	Inputs  models.Profile
	Outputs models.Outputs
	Metrics Metrics
}

// ChunkKind tags streamed chunks.
type ChunkKind string

const (
	ChunkDelta        ChunkKind = "delta"
	ChunkToolComplete ChunkKind = "tool_complete"
)

// Chunk is one streamed piece of a run.
type Chunk struct {
	Kind ChunkKind
	Text string
	Tool string
}

// Handler receives chunks in order. Returning an error aborts the run.
type Handler func(Chunk) error

// Deps are the collaborators of a Pipeline. Clients and Knowledge are
// required.
type Deps struct {
	Clients      llm.Factory
	Knowledge    Knowledge
	Cache        OutputCache
	Runs         RunRecorder
	Prompts      *prompts.Builder
	Logger       *zap.Logger
	StageTimeout time.Duration
}

// Pipeline is stateless between runs and safe for concurrent use.
type Pipeline struct {
	clients      llm.Factory
	knowledge    Knowledge
	cache        OutputCache
	runs         RunRecorder
	prompts      *prompts.Builder
	logger       *zap.Logger
	stageTimeout time.Duration
	now          func() time.Time
}

func NewPipeline(d Deps) (*Pipeline, error) {
	if d.Clients == nil {
		return nil, errors.New("discovery: llm client factory is required")
	}
	if d.Knowledge == nil {
		return nil, errors.New("discovery: knowledge source is required")
	}
	p := &Pipeline{
		clients:      d.Clients,
		knowledge:    d.Knowledge,
		cache:        d.Cache,
		runs:         d.Runs,
		prompts:      d.Prompts,
		logger:       logging.OrNop(d.Logger),
		stageTimeout: d.StageTimeout,
		now:          time.Now,
	}
	if p.cache == nil {
		p.cache = noCache{}
	}
	if p.prompts == nil {
		p.prompts = prompts.NewBuilder(nil)
	}
	if p.stageTimeout <= 0 {
		p.stageTimeout = DefaultStageTimeout
	}
	return p, nil
}

// Run generates the outputs for profile and returns them whole.
func (p *Pipeline) Run(ctx context.Context, profile models.Profile, opts Options) (*Result, error) {
	return p.execute(ctx, profile, opts, nil)
}

// Stream generates the outputs for profile, passing Stage 2 text to h as it
// arrives. The returned Result holds the parsed sections.
func (p *Pipeline) Stream(ctx context.Context, profile models.Profile, opts Options, h Handler) (*Result, error) {
	if h == nil {
		return nil, NewError(KindInternal, "stream handler is required", nil)
	}
	return p.execute(ctx, profile, opts, h)
}

func (p *Pipeline) execute(ctx context.Context, profile models.Profile, opts Options, h Handler) (*Result, error) {
	start := p.now()

	if err := profile.Validate(); err != nil {
		return nil, NewError(KindInvalidInput, strings.TrimPrefix(err.Error(), models.ErrInvalidProfile.Error()+": "), err)
	}
	profile = profile.WithDefaults()

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	res := &Result{RunID: opts.RunID, Inputs: profile}
	key := cache.Key(profile)
	log := p.logger.With(zap.String("run_id", opts.RunID), zap.String("cache_key", key))

	if out, ok := p.cache.Get(ctx, key, opts.CacheBypass); ok {
		res.Outputs = out
		res.Metrics.CacheHit = true
		if h != nil {
			for _, s := range out.Sections() {
				if err := h(Chunk{Kind: ChunkDelta, Text: s}); err != nil {
					return nil, classify(ctx, err)
				}
			}
		}
		res.Metrics.TotalTime = p.since(start)
		p.record(ctx, res, opts.UserID, log)
		log.Info("Discovery served from cache", zap.Float64("total_time", res.Metrics.TotalTime))
		return res, nil
	}

	stage1, err := p.prompts.Stage1(profile)
	if err != nil {
		return nil, NewError(KindInvalidInput, "Your profile is too long to analyse. Please shorten the experience summary.", err)
	}
	res.Metrics.Stage1Tokens = stage1.Tokens

	emit := newGuard(h)
	analysis, bundle := p.parallel(ctx, profile, stage1, opts, emit, &res.Metrics, log)
	emit.close()
	res.Outputs.ProfileAnalysis = analysis

	stage2, err := p.prompts.Stage2(profile, analysis, bundle.Blocks)
	if err != nil {
		return nil, NewError(KindInvalidInput, "The research prompt exceeds its size limit. Please shorten your profile.", err)
	}
	res.Metrics.Stage2Tokens = stage2.Tokens

	text, err := p.stage2(ctx, stage2, h, &res.Metrics)
	if err != nil {
		log.Error("Stage 2 failed", zap.Error(err))
		return nil, classify(ctx, err)
	}

	res.Outputs.StartupIdeasResearch, res.Outputs.PersonalizedRecommendations = ParseSections(text)
	if !Validate(res.Outputs) {
		log.Warn("Discovery produced no usable sections", zap.Int("response_len", len(text)))
		return nil, NewError(KindNoResults, "No usable results were generated for this profile. Please try again or adjust your inputs.", nil)
	}

	p.cache.Set(ctx, key, profile, res.Outputs.Map(), opts.CacheBypass)
	res.Metrics.TotalTime = p.since(start)
	p.record(ctx, res, opts.UserID, log)

	log.Info("Discovery run finished",
		zap.Float64("tool_precompute_time", res.Metrics.ToolPrecomputeTime),
		zap.Float64("stage1_time", res.Metrics.Stage1Time),
		zap.Float64("llm_time", res.Metrics.LLMTime),
		zap.Float64("total_time", res.Metrics.TotalTime),
		zap.Int("tool_errors", len(res.Metrics.ToolErrors)))
	return res, nil
}

type stage1Result struct {
	text    string
	elapsed time.Duration
	err     error
}

type knowledgeResult struct {
	bundle  tools.Bundle
	elapsed time.Duration
	err     error
}

// parallel runs Stage 1 and knowledge assembly on a pool of two and joins
// both within the stage timeout. A unit that misses it contributes its
// fallback and is left to finish in the background.
func (p *Pipeline) parallel(ctx context.Context, profile models.Profile, stage1 prompts.Bundle, opts Options, emit *guard, m *Metrics, log *zap.Logger) (string, tools.Bundle) {
	s1ch := make(chan stage1Result, 1)
	kch := make(chan knowledgeResult, 1)

	g := new(errgroup.Group)
	g.SetLimit(2)
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
		t0 := time.Now()
		text, err := p.stage1(sctx, stage1)
		s1ch <- stage1Result{text: text, elapsed: time.Since(t0), err: err}
		return nil
	})
	g.Go(func() error {
		kctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
		t0 := time.Now()
		pending := p.knowledge.Start(kctx, profile.InterestArea, profile.SubInterestArea)
		log.Debug("Knowledge assembly started", zap.Int("static_blocks", len(pending.Partial())))
		if opts.ToolEvents && emit.active() {
			forwardCompletions(kctx, pending, emit)
		}
		b, err := pending.Wait(kctx)
		kch <- knowledgeResult{bundle: b, elapsed: time.Since(t0), err: err}
		return nil
	})

	timer := time.NewTimer(p.stageTimeout)
	defer timer.Stop()

	var (
		s1        stage1Result
		kr        knowledgeResult
		s1Ok, kOk bool
	)
join:
	for !(s1Ok && kOk) {
		select {
		case s1 = <-s1ch:
			s1Ok = true
		case kr = <-kch:
			kOk = true
		case <-timer.C:
			break join
		case <-ctx.Done():
			break join
		}
	}

	analysis := ""
	switch {
	case !s1Ok:
		log.Warn("Stage 1 missed its deadline; continuing without profile analysis")
	case s1.err != nil:
		log.Warn("Stage 1 failed; continuing without profile analysis", zap.Error(s1.err))
	default:
		analysis = s1.text
		m.Stage1Time = s1.elapsed.Seconds()
	}

	bundle := tools.FallbackBundle()
	switch {
	case !kOk:
		log.Warn("Knowledge assembly missed its deadline; using fallback blocks")
	case kr.err != nil:
		log.Warn("Knowledge assembly failed; using fallback blocks", zap.Error(kr.err))
	default:
		bundle = kr.bundle
		m.ToolPrecomputeTime = kr.elapsed.Seconds()
		if len(kr.bundle.Errors) > 0 {
			m.ToolErrors = kr.bundle.Errors
		}
	}
	return analysis, bundle
}

func forwardCompletions(ctx context.Context, pending *tools.Pending, emit *guard) {
	for {
		select {
		case name, ok := <-pending.Completions():
			if !ok {
				return
			}
			if err := emit.send(Chunk{Kind: ChunkToolComplete, Tool: name}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) stage1(ctx context.Context, b prompts.Bundle) (string, error) {
	c, err := p.clients()
	if err != nil {
		return "", err
	}
	out, err := c.Complete(ctx, llm.Request{
		System:          b.System,
		User:            b.User,
		MaxOutputTokens: prompts.Stage1MaxOutput,
		Temperature:     prompts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (p *Pipeline) stage2(ctx context.Context, b prompts.Bundle, h Handler, m *Metrics) (string, error) {
	c, err := p.clients()
	if err != nil {
		return "", err
	}
	req := llm.Request{
		System:          b.System,
		User:            b.User,
		MaxOutputTokens: prompts.Stage2MaxOutput,
		Temperature:     prompts.Temperature,
	}

	t0 := time.Now()
	defer func() { m.LLMTime = time.Since(t0).Seconds() }()

	if h == nil {
		return c.Complete(ctx, req)
	}
	var sb strings.Builder
	err = c.Stream(ctx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		sb.WriteString(delta)
		return h(Chunk{Kind: ChunkDelta, Text: delta})
	})
	return sb.String(), err
}

// record persists a delivered run. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, res *Result, userID string, log *zap.Logger) {
	if p.runs == nil {
		return
	}
	inputs, err := json.Marshal(res.Inputs.Map())
	if err != nil {
		log.Warn("Run inputs not serialisable", zap.Error(err))
		return
	}
	outputs, _ := json.Marshal(res.Outputs.Map())

	err = p.runs.CreateRun(context.WithoutCancel(ctx), models.RunRecord{
		RunID:     res.RunID,
		UserID:    userID,
		Inputs:    string(inputs),
		Outputs:   string(outputs),
		CreatedAt: p.now(),
	})
	if err != nil {
		log.Warn("Failed to persist run", zap.Error(err))
	}
}

func (p *Pipeline) since(t time.Time) float64 {
	return p.now().Sub(t).Seconds()
}

// classify turns a raw failure into an *Error with a user-safe message.
func classify(ctx context.Context, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	kind := KindOf(err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return NewError(kind, UserMessage(NewError(kind, "", err)), err)
}

// guard serialises handler calls and drops tool events that arrive after
// the parallel phase.
type guard struct {
	mu     sync.Mutex
	h      Handler
	closed bool
}

func newGuard(h Handler) *guard { return &guard{h: h} }

func (g *guard) active() bool { return g.h != nil }

func (g *guard) send(c Chunk) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.h == nil {
		return nil
	}
	return g.h(c)
}

func (g *guard) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

type noCache struct{}

func (noCache) Get(context.Context, string, bool) (models.Outputs, bool) { return models.Outputs{}, false }

func (noCache) Set(context.Context, string, models.Profile, map[string]string, bool) bool {
	return false
}
