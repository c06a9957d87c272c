package models

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Ceilings enforced on inbound profile text.
const (
	MaxShortFieldLen = 200
	MaxExperienceLen = 10000
)

// ErrInvalidProfile is wrapped by every profile shape or type violation.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is the user questionnaire the discovery pipeline runs on.
type Profile struct {
	GoalType          string         `json:"goal_type"`
	TimeCommitment    string         `json:"time_commitment"`
	BudgetRange       string         `json:"budget_range"`
	InterestArea      string         `json:"interest_area"`
	SubInterestArea   string         `json:"sub_interest_area"`
	WorkStyle         string         `json:"work_style"`
	SkillStrength     string         `json:"skill_strength"`
	ExperienceSummary string         `json:"experience_summary"`
	FounderPsychology map[string]any `json:"founder_psychology"`
}

// Canonical values for short fields left empty.
const (
	DefaultGoalType       = "Extra Income"
	DefaultTimeCommitment = "<5 hrs/week"
	DefaultBudgetRange    = "Free / Sweat-equity only"
	DefaultInterestArea   = "General"
	DefaultWorkStyle      = "Solo"
	DefaultSkillStrength  = "Analytical / Strategic"
)

type shortField struct {
	key string
	dst func(p *Profile) *string
}

var shortFields = []shortField{
	{"goal_type", func(p *Profile) *string { return &p.GoalType }},
	{"time_commitment", func(p *Profile) *string { return &p.TimeCommitment }},
	{"budget_range", func(p *Profile) *string { return &p.BudgetRange }},
	{"interest_area", func(p *Profile) *string { return &p.InterestArea }},
	{"sub_interest_area", func(p *Profile) *string { return &p.SubInterestArea }},
	{"work_style", func(p *Profile) *string { return &p.WorkStyle }},
	{"skill_strength", func(p *Profile) *string { return &p.SkillStrength }},
}

// ParseProfile validates a decoded JSON object and converts it to a Profile.
// Unknown keys are ignored.
func ParseProfile(raw map[string]any) (Profile, error) {
	var p Profile
	if raw == nil {
		return p, fmt.Errorf("%w: body must be a JSON object", ErrInvalidProfile)
	}

	for _, f := range shortFields {
		s, err := stringField(raw, f.key, MaxShortFieldLen)
		if err != nil {
			return Profile{}, err
		}
		*f.dst(&p) = s
	}

	exp, err := stringField(raw, "experience_summary", MaxExperienceLen)
	if err != nil {
		return Profile{}, err
	}
	p.ExperienceSummary = exp

	switch v := raw["founder_psychology"].(type) {
	case nil:
	case map[string]any:
		p.FounderPsychology = v
	default:
		return Profile{}, fmt.Errorf("%w: founder_psychology must be an object", ErrInvalidProfile)
	}

	return p, nil
}

// Validate checks the length ceilings of a profile built without ParseProfile.
func (p Profile) Validate() error {
	for _, f := range shortFields {
		if utf8.RuneCountInString(*f.dst(&p)) > MaxShortFieldLen {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidProfile, f.key, MaxShortFieldLen)
		}
	}
	if utf8.RuneCountInString(p.ExperienceSummary) > MaxExperienceLen {
		return fmt.Errorf("%w: experience_summary exceeds %d characters", ErrInvalidProfile, MaxExperienceLen)
	}
	return nil
}

func stringField(raw map[string]any, key string, limit int) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidProfile, key)
	}
	if utf8.RuneCountInString(s) > limit {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidProfile, key, limit)
	}
	return s, nil
}

// WithDefaults returns a copy with empty short fields set to their canonical values.
func (p Profile) WithDefaults() Profile {
	out := p
	defaults := map[*string]string{
		&out.GoalType:       DefaultGoalType,
		&out.TimeCommitment: DefaultTimeCommitment,
		&out.BudgetRange:    DefaultBudgetRange,
		&out.InterestArea:   DefaultInterestArea,
		&out.WorkStyle:      DefaultWorkStyle,
		&out.SkillStrength:  DefaultSkillStrength,
	}
	for field, def := range defaults {
		if isBlank(*field) {
			*field = def
		}
	}
	if out.FounderPsychology == nil {
		out.FounderPsychology = map[string]any{}
	}
	return out
}

// Map returns the profile as the ordered-key mapping persisted with runs.
func (p Profile) Map() map[string]any {
	fp := p.FounderPsychology
	if fp == nil {
		fp = map[string]any{}
	}
	return map[string]any{
		"goal_type":          p.GoalType,
		"time_commitment":    p.TimeCommitment,
		"budget_range":       p.BudgetRange,
		"interest_area":      p.InterestArea,
		"sub_interest_area":  p.SubInterestArea,
		"work_style":         p.WorkStyle,
		"skill_strength":     p.SkillStrength,
		"experience_summary": p.ExperienceSummary,
		"founder_psychology": fp,
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
