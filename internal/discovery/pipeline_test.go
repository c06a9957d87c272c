package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/budget"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/cache"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm/llmtest"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/prompts"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/tools"
)

const (
	stage1Match = "Core Motivation"
	stage2Match = "Comprehensive Recommendation Report"
)

var (
	analysisReply = "## 1. Core Motivation\nYou want a dependable second income without risking your savings.\n" +
		"## 2. Constraints\nYou have under five hours a week and no budget.\n" +
		"## 3. Strengths\nYou think analytically.\n## 4. Skill Gaps\nSales and marketing."

	researchBody = "### Idea Research Report\n" + strings.Repeat("Idea one serves hobby potters with kiln scheduling. ", 6)
	recsBody     = "### Comprehensive Recommendation Report\n" + strings.Repeat("Start with idea one and interview ten studios. ", 6)
)

type staticMap map[string]string

func (s staticMap) LoadArea(string, string) map[string]string {
	out := map[string]string{}
	for k, v := range s {
		out[k] = v
	}
	return out
}

type env struct {
	fake     *llmtest.Fake
	store    *store.SQLiteStore
	pipeline *Pipeline
}

func newEnv(t *testing.T, fake *llmtest.Fake, client llm.Client, timeout time.Duration) *env {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "discovery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if client == nil {
		client = fake
	}
	p, err := NewPipeline(Deps{
		Clients:      llm.Static(client),
		Knowledge:    tools.NewPrecomputer(staticMap{}, llm.Static(client), tools.WithCache(cache.NewTools(s, 0, nil))),
		Cache:        cache.NewDiscovery(s, 0, nil),
		Runs:         s,
		Prompts:      prompts.NewBuilder(budget.Estimator{}),
		StageTimeout: timeout,
	})
	require.NoError(t, err)
	return &env{fake: fake, store: s, pipeline: p}
}

func potteryProfile() models.Profile {
	return models.Profile{
		GoalType:          "Extra Income",
		TimeCommitment:    "<5 hrs/week",
		BudgetRange:       "Free / Sweat-equity only",
		InterestArea:      "Quantum Pottery",
		SubInterestArea:   "",
		WorkStyle:         "Solo",
		SkillStrength:     "Analytical / Strategic",
		ExperienceSummary: "none",
		FounderPsychology: map[string]any{},
	}
}

func happyFake() *llmtest.Fake {
	return llmtest.New(
		llmtest.Rule{Match: stage2Match, Reply: researchBody + "\n\n" + recsBody},
		llmtest.Rule{Match: stage1Match, Reply: analysisReply},
	)
}

func TestNewPipelineRequiresDeps(t *testing.T) {
	_, err := NewPipeline(Deps{})
	assert.Error(t, err)
	_, err = NewPipeline(Deps{Clients: llm.Static(llmtest.New())})
	assert.Error(t, err)
}

func TestRunMissThenHit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, happyFake(), nil, 0)

	res, err := e.pipeline.Run(ctx, potteryProfile(), Options{UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, res.Metrics.CacheHit)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, analysisReply, res.Outputs.ProfileAnalysis)
	assert.True(t, strings.HasPrefix(res.Outputs.StartupIdeasResearch, "### Idea Research Report"))
	assert.True(t, strings.HasPrefix(res.Outputs.PersonalizedRecommendations, "### Comprehensive Recommendation Report"))
	// Stage 1, nine model-backed tools and Stage 2.
	assert.Len(t, e.fake.Calls(), 11)

	second, err := e.pipeline.Run(ctx, potteryProfile(), Options{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, second.Metrics.CacheHit)
	assert.Equal(t, res.Outputs, second.Outputs)
	assert.Len(t, e.fake.Calls(), 11)

	runs, err := e.store.ListRuns(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunPersistsReturnedOutputs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, happyFake(), nil, 0)

	res, err := e.pipeline.Run(ctx, potteryProfile(), Options{RunID: "run-1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)

	rec, err := e.store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.Outputs), &stored))
	assert.Equal(t, res.Outputs.Map(), stored)
}

func TestRunDefaultsEmptyFields(t *testing.T) {
	e := newEnv(t, happyFake(), nil, 0)

	res, err := e.pipeline.Run(context.Background(), models.Profile{InterestArea: "Quantum Pottery"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultGoalType, res.Inputs.GoalType)
	assert.Equal(t, models.DefaultWorkStyle, res.Inputs.WorkStyle)
	assert.NotNil(t, res.Inputs.FounderPsychology)
}

func TestCacheBypass(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, happyFake(), nil, 0)

	_, err := e.pipeline.Run(ctx, potteryProfile(), Options{CacheBypass: true})
	require.NoError(t, err)
	res, err := e.pipeline.Run(ctx, potteryProfile(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Metrics.CacheHit, "bypassed run must not populate the cache")
}

func TestStreamHappyPath(t *testing.T) {
	fake := llmtest.New(
		llmtest.Rule{Match: stage2Match, Chunks: []string{"ABC", "DEF", "GHI", "JKL", "MNO"}},
		llmtest.Rule{Match: stage1Match, Reply: analysisReply},
	)
	e := newEnv(t, fake, nil, 0)

	var chunks []Chunk
	res, err := e.pipeline.Stream(context.Background(), potteryProfile(), Options{}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	var texts []string
	for _, c := range chunks {
		require.Equal(t, ChunkDelta, c.Kind)
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"ABC", "DEF", "GHI", "JKL", "MNO"}, texts)
	assert.Equal(t, "ABCDEFGHIJKLMNO", res.Outputs.StartupIdeasResearch)
	assert.Equal(t, 1, fake.Streams())
}

func TestStreamCacheHitYieldsSections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, happyFake(), nil, 0)
	_, err := e.pipeline.Run(ctx, potteryProfile(), Options{})
	require.NoError(t, err)

	var texts []string
	res, err := e.pipeline.Stream(ctx, potteryProfile(), Options{}, func(c Chunk) error {
		texts = append(texts, c.Text)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Metrics.CacheHit)
	assert.Equal(t, res.Outputs.Sections(), texts)
}

func TestStreamToolEvents(t *testing.T) {
	e := newEnv(t, happyFake(), nil, 0)

	var tools, deltas int
	_, err := e.pipeline.Stream(context.Background(), potteryProfile(), Options{ToolEvents: true}, func(c Chunk) error {
		switch c.Kind {
		case ChunkToolComplete:
			assert.Zero(t, deltas, "tool events precede Stage 2 text")
			assert.True(t, models.IsBlock(c.Tool))
			tools++
		case ChunkDelta:
			deltas++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(models.AllBlocks), tools)
	assert.Equal(t, 1, deltas)
}

func TestStreamHandlerErrorAborts(t *testing.T) {
	e := newEnv(t, happyFake(), nil, 0)
	_, err := e.pipeline.Stream(context.Background(), potteryProfile(), Options{}, func(Chunk) error {
		return errors.New("client went away")
	})
	require.Error(t, err)

	res, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Metrics.CacheHit, "failed stream must not be cached")
}

func TestStage1FailureIsIsolated(t *testing.T) {
	fake := llmtest.New(
		llmtest.Rule{Match: stage2Match, Reply: researchBody + "\n" + recsBody},
		llmtest.Rule{Match: stage1Match, Err: fmt.Errorf("%w: overloaded", llm.ErrProvider)},
	)
	e := newEnv(t, fake, nil, 0)

	res, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Outputs.ProfileAnalysis)
	assert.NotEmpty(t, res.Outputs.StartupIdeasResearch)
	assert.Equal(t, 1, fake.CallsMatching(stage2Match))
}

func TestStage1FailureWithShortStage2IsNoResults(t *testing.T) {
	fake := llmtest.New(
		llmtest.Rule{Match: stage2Match, Reply: "### Idea Research Report\ntoo short"},
		llmtest.Rule{Match: stage1Match, Err: errors.New("boom")},
	)
	e := newEnv(t, fake, nil, 0)

	_, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.Error(t, err)
	assert.Equal(t, KindNoResults, KindOf(err))
}

type blockingStage1 struct {
	*llmtest.Fake
}

func (b blockingStage1) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.Contains(req.User, stage1Match) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return b.Fake.Complete(ctx, req)
}

func TestStage1DeadlineDegrades(t *testing.T) {
	fake := happyFake()
	e := newEnv(t, fake, blockingStage1{fake}, 50*time.Millisecond)

	start := time.Now()
	res, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, res.Outputs.ProfileAnalysis)
	assert.NotEmpty(t, res.Outputs.PersonalizedRecommendations)
}

// blockingStage2 hangs on the final stage until the caller's deadline and
// reports it the way a provider SDK does, as a formatted transport error.
type blockingStage2 struct {
	*llmtest.Fake
}

func (b blockingStage2) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.Contains(req.User, stage2Match) {
		<-ctx.Done()
		return "", fmt.Errorf("%w: openai generate: Post \"https://api.openai.com/v1/responses\": %v", llm.ErrProvider, ctx.Err())
	}
	return b.Fake.Complete(ctx, req)
}

func TestStage2DeadlineIsTimeout(t *testing.T) {
	fake := happyFake()
	e := newEnv(t, fake, blockingStage2{fake}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := e.pipeline.Run(ctx, potteryProfile(), Options{})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Contains(t, UserMessage(err), "retry")
}

func TestStage2ProviderFailure(t *testing.T) {
	fake := llmtest.New(
		llmtest.Rule{Match: stage2Match, Err: fmt.Errorf("%w: anthropic: 529 at /srv/app/key.txt", llm.ErrProvider)},
		llmtest.Rule{Match: stage1Match, Reply: analysisReply},
	)
	e := newEnv(t, fake, nil, 0)

	_, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.Error(t, err)
	assert.Equal(t, KindProviderFailure, KindOf(err))
	assert.NotContains(t, UserMessage(err), "/srv/app")
}

func TestInvalidProfile(t *testing.T) {
	e := newEnv(t, happyFake(), nil, 0)
	p := potteryProfile()
	p.GoalType = strings.Repeat("x", models.MaxShortFieldLen+1)

	_, err := e.pipeline.Run(context.Background(), p, Options{})
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Empty(t, e.fake.Calls())
}

func TestEveryPromptWithinCeiling(t *testing.T) {
	e := newEnv(t, happyFake(), nil, 0)
	p := potteryProfile()
	p.ExperienceSummary = strings.Repeat("Ten years of logistics and retail operations. ", 210)

	_, err := e.pipeline.Run(context.Background(), p, Options{})
	require.NoError(t, err)

	var counter budget.Estimator
	for _, c := range e.fake.Calls() {
		assert.LessOrEqual(t, counter.Count(c.System)+counter.Count(c.User), budget.Stage1.Hard)
	}
}

func TestRunRecordsToolErrors(t *testing.T) {
	fake := happyFake().On(llmtest.Rule{Match: "customer persona", Err: errors.New("rate limited")})
	e := newEnv(t, fake, nil, 0)

	res, err := e.pipeline.Run(context.Background(), potteryProfile(), Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Metrics.ToolErrors, models.BlockPersona)
}

func TestKnowledgeStartLogsStaticBlocks(t *testing.T) {
	fake := happyFake()
	core, logs := observer.New(zap.DebugLevel)
	static := staticMap{models.BlockRisks: "Static risks.", models.BlockPersona: "Static persona."}
	p, err := NewPipeline(Deps{
		Clients:   llm.Static(fake),
		Knowledge: tools.NewPrecomputer(static, llm.Static(fake)),
		Logger:    zap.New(core),
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), potteryProfile(), Options{})
	require.NoError(t, err)

	started := logs.FilterMessage("Knowledge assembly started").All()
	require.Len(t, started, 1)
	assert.Equal(t, int64(2), started[0].ContextMap()["static_blocks"])
}
