package cache

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
)

func baseProfile() models.Profile {
	return models.Profile{
		GoalType:          "Extra Income",
		TimeCommitment:    "<5 hrs/week",
		BudgetRange:       "Free / Sweat-equity only",
		InterestArea:      "Quantum Pottery",
		WorkStyle:         "Solo",
		SkillStrength:     "Analytical / Strategic",
		ExperienceSummary: "none",
		FounderPsychology: map[string]any{},
	}
}

func TestKeyFormat(t *testing.T) {
	k := Key(baseProfile())
	assert.True(t, strings.HasPrefix(k, "discovery:"))
	assert.Len(t, strings.TrimPrefix(k, "discovery:"), 32)
}

func TestKeyNormalizationCollapses(t *testing.T) {
	p1 := baseProfile()
	p2 := baseProfile()
	p2.GoalType = "  extra   INCOME  "
	assert.Equal(t, Key(p1), Key(p2))
}

func TestKeyIgnoresFounderPsychologyOrder(t *testing.T) {
	p1 := baseProfile()
	p1.FounderPsychology = map[string]any{"motivation_primary": "security", "risk": "low"}
	p2 := baseProfile()
	p2.FounderPsychology = map[string]any{"risk": "low", "motivation_primary": "security"}
	assert.Equal(t, Key(p1), Key(p2))
}

func TestKeyFounderPsychologySensitivity(t *testing.T) {
	p1 := baseProfile()
	p1.FounderPsychology = map[string]any{"motivation_primary": "security"}
	p2 := baseProfile()
	p2.FounderPsychology = map[string]any{"motivation_primary": "freedom"}
	assert.NotEqual(t, Key(p1), Key(p2))
}

func TestKeyDistinctPerFactor(t *testing.T) {
	base := Key(baseProfile())
	mutations := map[string]func(p *models.Profile){
		"goal_type":          func(p *models.Profile) { p.GoalType = "Full-time Business" },
		"time_commitment":    func(p *models.Profile) { p.TimeCommitment = "20+ hrs/week" },
		"budget_range":       func(p *models.Profile) { p.BudgetRange = "$10k+" },
		"interest_area":      func(p *models.Profile) { p.InterestArea = "Fintech" },
		"sub_interest_area":  func(p *models.Profile) { p.SubInterestArea = "Payments" },
		"work_style":         func(p *models.Profile) { p.WorkStyle = "Team" },
		"skill_strength":     func(p *models.Profile) { p.SkillStrength = "Creative" },
		"founder_psychology": func(p *models.Profile) { p.FounderPsychology = map[string]any{"a": 1} },
	}
	seen := map[string]string{}
	for name, mutate := range mutations {
		p := baseProfile()
		mutate(&p)
		k := Key(p)
		assert.NotEqual(t, base, k, name)
		for other, ok := range seen {
			assert.NotEqual(t, ok, k, "%s collides with %s", name, other)
		}
		seen[name] = k
	}
}

func TestKeyIgnoresExperienceSummary(t *testing.T) {
	p := baseProfile()
	p.ExperienceSummary = "ten years in logistics"
	assert.Equal(t, Key(baseProfile()), Key(p))
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOutputs() map[string]string {
	return map[string]string{
		models.SectionProfileAnalysis: "analysis",
		models.SectionIdeasResearch:   "research",
		models.SectionRecommendations: "recs",
	}
}

func TestDiscoverySetGet(t *testing.T) {
	ctx := context.Background()
	d := NewDiscovery(newStore(t), 0, nil)
	key := Key(baseProfile())

	_, ok := d.Get(ctx, key, false)
	assert.False(t, ok)

	require.True(t, d.Set(ctx, key, baseProfile(), sampleOutputs(), false))
	got, ok := d.Get(ctx, key, false)
	require.True(t, ok)
	assert.Equal(t, "research", got.StartupIdeasResearch)
}

func TestDiscoveryBypass(t *testing.T) {
	ctx := context.Background()
	d := NewDiscovery(newStore(t), 0, nil)
	key := Key(baseProfile())

	assert.False(t, d.Set(ctx, key, baseProfile(), sampleOutputs(), true))
	_, ok := d.Get(ctx, key, false)
	assert.False(t, ok)

	require.True(t, d.Set(ctx, key, baseProfile(), sampleOutputs(), false))
	_, ok = d.Get(ctx, key, true)
	assert.False(t, ok)
}

func TestDiscoveryRejectsIncompleteOrEmpty(t *testing.T) {
	ctx := context.Background()
	d := NewDiscovery(newStore(t), 0, nil)

	assert.False(t, d.Set(ctx, "k", baseProfile(), map[string]string{models.SectionProfileAnalysis: "x"}, false))
	assert.False(t, d.Set(ctx, "k", baseProfile(), map[string]string{
		models.SectionProfileAnalysis: "", models.SectionIdeasResearch: "", models.SectionRecommendations: "",
	}, false))
}

func TestDiscoveryUndecodableIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.PutEntry(ctx, models.CacheEntry{CacheKey: "k", ToolName: "discovery", Params: "{}", Result: "not-json"}, time.Hour))

	d := NewDiscovery(s, 0, nil)
	_, ok := d.Get(ctx, "k", false)
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) GetEntry(context.Context, string) (*models.CacheEntry, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) PutEntry(context.Context, models.CacheEntry, time.Duration) error {
	return errors.New("disk on fire")
}

func TestDiscoveryAbsorbsStoreFailures(t *testing.T) {
	d := NewDiscovery(failingStore{}, 0, nil)
	_, ok := d.Get(context.Background(), "k", false)
	assert.False(t, ok)
	assert.False(t, d.Set(context.Background(), "k", baseProfile(), sampleOutputs(), false))
}

func TestToolsCache(t *testing.T) {
	ctx := context.Background()
	tc := NewTools(newStore(t), 0, nil)
	key := ToolsKey("ai")
	assert.Equal(t, "static_tools_ai", key)

	_, ok := tc.Get(ctx, key)
	assert.False(t, ok)

	tc.Set(ctx, key, map[string]string{"interest_area": "ai"}, map[string]string{"risks": "r"})
	got, ok := tc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "r", got["risks"])
}
