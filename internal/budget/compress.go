package budget

import (
	"strings"
	"unicode"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// Character budgets.
const (
	ProfileBudget         = 200
	DefaultBlockBudget    = 100
	AggressiveBlockBudget = 60
)

const ellipsis = "..."

var blockKeywords = []string{"$", "%", "market", "revenue", "cost", "risk", "growth"}

// CompressProfile renders the fixed-order one-line profile summary used in
// prompts, at most ProfileBudget characters.
func CompressProfile(p models.Profile) string {
	interest := strings.TrimSpace(p.InterestArea)
	if sub := strings.TrimSpace(p.SubInterestArea); sub != "" {
		interest += " - " + sub
	}

	parts := []string{
		"Goal: " + strings.TrimSpace(p.GoalType),
		"Time: " + strings.TrimSpace(p.TimeCommitment),
		"Budget: " + strings.TrimSpace(p.BudgetRange),
		"Interest: " + interest,
		"Style: " + strings.TrimSpace(p.WorkStyle),
		"Skills: " + strings.TrimSpace(p.SkillStrength),
	}
	return Truncate(strings.Join(parts, " | "), ProfileBudget)
}

// CompressBlock keeps the first substantive line of text and the lines that
// carry figures, bullets or numbered items, within limit characters.
func CompressBlock(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultBlockBudget
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return ""
	}

	lead := -1
	for i, l := range lines {
		if runeLen(l) > 10 {
			lead = i
			break
		}
	}

	var kept []string
	used := 0
	if lead >= 0 {
		first := Truncate(lines[lead], limit*6/10)
		kept = append(kept, first)
		used = runeLen(first)
	}

	for i, l := range lines {
		if i == lead || !isSignalLine(l) {
			continue
		}
		if used >= limit {
			break
		}
		kept = append(kept, l)
		used += runeLen(l) + 3
	}

	if len(kept) == 0 {
		kept = lines[:1]
	}
	return Truncate(strings.Join(kept, " | "), limit)
}

// CompressBlocks applies CompressBlock to every value.
func CompressBlocks(blocks map[string]string, limit int) map[string]string {
	out := make(map[string]string, len(blocks))
	for k, v := range blocks {
		out[k] = CompressBlock(v, limit)
	}
	return out
}

func isSignalLine(l string) bool {
	if isBullet(l) || isNumbered(l) {
		return true
	}
	if !strings.ContainsFunc(l, unicode.IsDigit) {
		return false
	}
	lower := strings.ToLower(l)
	for _, kw := range blockKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isBullet(l string) bool {
	return strings.HasPrefix(l, "- ") || strings.HasPrefix(l, "* ") || strings.HasPrefix(l, "• ")
}

func isNumbered(l string) bool {
	i := 0
	for _, r := range l {
		if !unicode.IsDigit(r) {
			break
		}
		i++
	}
	if i == 0 || i >= len(l) {
		return false
	}
	return l[i] == '.' || l[i] == ')'
}

// Truncate cuts s to at most limit runes, ending in an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(r[:limit])
	}
	return string(r[:limit-len(ellipsis)]) + ellipsis
}

func runeLen(s string) int {
	return len([]rune(s))
}
