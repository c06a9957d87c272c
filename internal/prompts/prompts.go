// Package prompts assembles the two discovery prompts within their token
// ceilings.
package prompts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/budget"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// System is the advisor persona shared by both stages.
const System = "You are a pragmatic startup advisor who matches people with business ideas that fit their goals, time and budget."

// Stage limits.
const (
	Stage1MaxOutput = 600
	Stage2MaxOutput = 2000
	Temperature     = 0.3

	SummaryBudget = 200
)

// Bundle is a prompt ready to send. Tokens counts system and user together.
type Bundle struct {
	System string
	User   string
	Tokens int
}

// Builder builds prompts measured with one token counter.
type Builder struct {
	counter budget.Counter
}

func NewBuilder(counter budget.Counter) *Builder {
	if counter == nil {
		counter = budget.Estimator{}
	}
	return &Builder{counter: counter}
}

// Counter is the counter prompts are measured with.
func (b *Builder) Counter() budget.Counter { return b.counter }

const stage1Task = `## TASK AND OUTPUT FORMAT (CRITICAL)
Analyse this person as a future founder. Write 400-500 words in the second person ("you").
Use exactly these four Markdown headings, in order, and nothing before the first one:
## 1. Core Motivation
## 2. Constraints
## 3. Strengths
## 4. Skill Gaps`

// Stage1 builds the profile-analysis prompt.
func (b *Builder) Stage1(p models.Profile) (Bundle, error) {
	build := func(aggressive bool) string {
		var sb strings.Builder
		sb.WriteString("USER PROFILE: ")
		sb.WriteString(budget.CompressProfile(p))
		sb.WriteString("\n")
		if exp := strings.TrimSpace(p.ExperienceSummary); exp != "" {
			sb.WriteString("Experience: ")
			sb.WriteString(exp)
			sb.WriteString("\n")
		}
		if !aggressive && len(p.FounderPsychology) > 0 {
			fp, _ := json.Marshal(p.FounderPsychology)
			sb.WriteString("Founder psychology: ")
			sb.Write(fp)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(stage1Task)
		return sb.String()
	}
	return b.fit(budget.Stage1, build, "stage 1")
}

const stage2Task = `## TASK AND OUTPUT FORMAT (CRITICAL)
Using the profile, the analysis summary and the market knowledge above, write exactly two Markdown sections.

### Idea Research Report
Three startup ideas that fit this person. For each: the problem, the target customer, market size, competitors, key risks and estimated costs.

### Comprehensive Recommendation Report
Rank the three ideas for this person, pick one, and give a 30-day validation plan with concrete first steps.

Start each section with its heading exactly as written above. Do not add other top-level sections.`

// Stage2 builds the research-and-recommendation prompt from the Stage 1
// analysis and the knowledge blocks.
func (b *Builder) Stage2(p models.Profile, analysis string, blocks map[string]string) (Bundle, error) {
	summary := SummarizeAnalysis(analysis)

	build := func(aggressive bool) string {
		limit := budget.DefaultBlockBudget
		if aggressive {
			limit = budget.AggressiveBlockBudget
		}
		// encoding/json sorts map keys.
		knowledge, _ := json.Marshal(budget.CompressBlocks(blocks, limit))

		var sb strings.Builder
		sb.WriteString("USER PROFILE: ")
		sb.WriteString(budget.CompressProfile(p))
		sb.WriteString("\n")
		if summary != "" {
			sb.WriteString("PROFILE ANALYSIS SUMMARY: ")
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
		sb.WriteString("MARKET KNOWLEDGE: ")
		sb.Write(knowledge)
		sb.WriteString("\n\n")
		sb.WriteString(stage2Task)
		return sb.String()
	}
	return b.fit(budget.Stage2, build, "stage 2")
}

func (b *Builder) fit(c budget.Ceiling, build func(bool) string, stage string) (Bundle, error) {
	user, tokens, err := budget.Fit(b.counter, c, System, build)
	if err != nil {
		return Bundle{}, fmt.Errorf("%s prompt: %w", stage, err)
	}
	return Bundle{System: System, User: user, Tokens: tokens}, nil
}

var (
	emphasis   = regexp.MustCompile(`[*_` + "`" + `]+`)
	listMarker = regexp.MustCompile(`^(\s*[-*+•]\s+|\s*\d+[.)]\s+)`)
	spaces     = regexp.MustCompile(`\s+`)
)

// SummarizeAnalysis flattens a Markdown analysis into plain text of at most
// SummaryBudget characters. Headings are dropped.
func SummarizeAnalysis(md string) string {
	var parts []string
	for _, l := range strings.Split(md, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		l = listMarker.ReplaceAllString(l, "")
		l = emphasis.ReplaceAllString(l, "")
		parts = append(parts, strings.TrimSpace(l))
	}
	text := spaces.ReplaceAllString(strings.Join(parts, " "), " ")
	return budget.Truncate(strings.TrimSpace(text), SummaryBudget)
}
