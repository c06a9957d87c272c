package models

import "time"

// Knowledge block names. The set is closed.
const (
	BlockMarketTrends        = "market_trends"
	BlockCompetitors         = "competitors"
	BlockMarketSize          = "market_size"
	BlockRisks               = "risks"
	BlockValidation          = "validation"
	BlockCosts               = "costs"
	BlockRevenue             = "revenue"
	BlockViability           = "viability"
	BlockPersona             = "persona"
	BlockValidationQuestions = "validation_questions"
)

// AllBlocks lists every knowledge block in prompt order.
var AllBlocks = []string{
	BlockMarketTrends,
	BlockCompetitors,
	BlockMarketSize,
	BlockRisks,
	BlockValidation,
	BlockCosts,
	BlockRevenue,
	BlockViability,
	BlockPersona,
	BlockValidationQuestions,
}

// IsBlock reports whether name belongs to the closed block set.
func IsBlock(name string) bool {
	for _, b := range AllBlocks {
		if b == name {
			return true
		}
	}
	return false
}

// Output section keys.
const (
	SectionProfileAnalysis = "profile_analysis"
	SectionIdeasResearch   = "startup_ideas_research"
	SectionRecommendations = "personalized_recommendations"
)

// Outputs holds the three generated Markdown sections.
type Outputs struct {
	ProfileAnalysis             string `json:"profile_analysis"`
	StartupIdeasResearch        string `json:"startup_ideas_research"`
	PersonalizedRecommendations string `json:"personalized_recommendations"`
}

// Map returns the sections keyed by their output names.
func (o Outputs) Map() map[string]string {
	return map[string]string{
		SectionProfileAnalysis: o.ProfileAnalysis,
		SectionIdeasResearch:   o.StartupIdeasResearch,
		SectionRecommendations: o.PersonalizedRecommendations,
	}
}

// OutputsFromMap is the inverse of Map. The second result is false unless all
// three keys are present.
func OutputsFromMap(m map[string]string) (Outputs, bool) {
	pa, ok1 := m[SectionProfileAnalysis]
	ir, ok2 := m[SectionIdeasResearch]
	pr, ok3 := m[SectionRecommendations]
	return Outputs{
		ProfileAnalysis:             pa,
		StartupIdeasResearch:        ir,
		PersonalizedRecommendations: pr,
	}, ok1 && ok2 && ok3
}

// Sections returns the non-empty sections in output order.
func (o Outputs) Sections() []string {
	var out []string
	for _, s := range []string{o.ProfileAnalysis, o.StartupIdeasResearch, o.PersonalizedRecommendations} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RunRecord is one persisted generation.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id"`
	Inputs    string    `json:"inputs_json"`
	Outputs   string    `json:"outputs_json"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheEntry is one row of the persisted tool/discovery cache.
type CacheEntry struct {
	CacheKey  string    `json:"cache_key"`
	ToolName  string    `json:"tool_name"`
	Params    string    `json:"tool_params"`
	Result    string    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int       `json:"hit_count"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
