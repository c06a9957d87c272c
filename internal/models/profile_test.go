package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(map[string]any{
		"goal_type":          "Full-time startup",
		"interest_area":      "Health & Wellness",
		"experience_summary": "Nurse, 10 years.",
		"founder_psychology": map[string]any{"risk": "high"},
		"unknown":            123,
	})
	require.NoError(t, err)
	assert.Equal(t, "Full-time startup", p.GoalType)
	assert.Equal(t, "Health & Wellness", p.InterestArea)
	assert.Equal(t, "Nurse, 10 years.", p.ExperienceSummary)
	assert.Equal(t, "high", p.FounderPsychology["risk"])
	assert.Empty(t, p.WorkStyle)
}

func TestParseProfileRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil body", nil},
		{"number field", map[string]any{"budget_range": 500}},
		{"list field", map[string]any{"skill_strength": []any{"a"}}},
		{"long short field", map[string]any{"work_style": strings.Repeat("x", MaxShortFieldLen+1)}},
		{"long experience", map[string]any{"experience_summary": strings.Repeat("x", MaxExperienceLen+1)}},
		{"psychology not object", map[string]any{"founder_psychology": "bold"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestParseProfileCountsRunes(t *testing.T) {
	_, err := ParseProfile(map[string]any{"interest_area": strings.Repeat("é", MaxShortFieldLen)})
	assert.NoError(t, err)
}

func TestWithDefaults(t *testing.T) {
	p := Profile{InterestArea: "Fintech", WorkStyle: "  "}.WithDefaults()

	assert.Equal(t, DefaultGoalType, p.GoalType)
	assert.Equal(t, DefaultTimeCommitment, p.TimeCommitment)
	assert.Equal(t, DefaultBudgetRange, p.BudgetRange)
	assert.Equal(t, "Fintech", p.InterestArea)
	assert.Equal(t, DefaultWorkStyle, p.WorkStyle)
	assert.Equal(t, DefaultSkillStrength, p.SkillStrength)
	assert.Empty(t, p.SubInterestArea)
	assert.NotNil(t, p.FounderPsychology)

	empty := Profile{}.WithDefaults()
	assert.Equal(t, DefaultInterestArea, empty.InterestArea)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Profile{InterestArea: "AI"}.Validate())
	assert.ErrorIs(t, Profile{GoalType: strings.Repeat("g", MaxShortFieldLen+1)}.Validate(), ErrInvalidProfile)
	assert.ErrorIs(t, Profile{ExperienceSummary: strings.Repeat("e", MaxExperienceLen+1)}.Validate(), ErrInvalidProfile)
}

func TestOutputsRoundTripMap(t *testing.T) {
	o := Outputs{ProfileAnalysis: "a", PersonalizedRecommendations: "c"}
	back, ok := OutputsFromMap(o.Map())
	assert.True(t, ok)
	assert.Equal(t, o, back)
	assert.Equal(t, []string{"a", "c"}, o.Sections())

	_, ok = OutputsFromMap(map[string]string{SectionProfileAnalysis: "a"})
	assert.False(t, ok)
}
