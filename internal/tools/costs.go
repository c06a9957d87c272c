package tools

import (
	"fmt"
	"strings"
)

type costLine struct {
	item  string
	small string
	large string
}

var baseCosts = []costLine{
	{"Domain, branding and website", "$20-$200", "$500-$3,000"},
	{"Hosting and SaaS tooling (monthly)", "$0-$100", "$200-$1,000"},
	{"Legal and incorporation", "$0-$300", "$500-$2,500"},
	{"Marketing experiments", "$100-$500", "$2,000-$10,000"},
}

// typeCosts is checked in order; the first keyword found in the business
// type wins.
var typeCosts = []struct {
	keyword string
	line    costLine
}{
	{"software", costLine{"Development (contract or own time)", "$0-$2,000", "$10,000-$50,000"}},
	{"saas", costLine{"Development (contract or own time)", "$0-$2,000", "$10,000-$50,000"}},
	{"marketplace", costLine{"Supply-side acquisition", "$200-$1,500", "$5,000-$30,000"}},
	{"ecommerce", costLine{"Initial inventory and fulfilment", "$300-$2,000", "$5,000-$25,000"}},
	{"physical", costLine{"Prototyping and manufacturing", "$500-$3,000", "$10,000-$100,000"}},
	{"service", costLine{"Certifications and equipment", "$0-$1,000", "$2,000-$10,000"}},
	{"content", costLine{"Production equipment and editing", "$100-$1,000", "$2,000-$8,000"}},
}

// Costs returns an estimated startup cost table for a business type and
// scope. It is deterministic and makes no model call. A scope containing
// "large", "full" or "scale" selects the larger column.
func Costs(businessType, scope string) string {
	large := isLargeScope(scope)

	lines := append([]costLine(nil), baseCosts...)
	if l, ok := matchType(businessType); ok {
		lines = append(lines, l)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Estimated startup costs for %s (%s scope):\n", orDefault(businessType, "a new business"), scopeLabel(large))
	b.WriteString("| Item | Estimate |\n|------|----------|\n")
	for _, l := range lines {
		est := l.small
		if large {
			est = l.large
		}
		fmt.Fprintf(&b, "| %s | %s |\n", l.item, est)
	}
	if large {
		b.WriteString("Total first-year range: $15,000-$150,000 depending on team and inventory.")
	} else {
		b.WriteString("Total first-year range: $100-$5,000, mostly covered by sweat equity.")
	}
	return b.String()
}

func matchType(businessType string) (costLine, bool) {
	t := strings.ToLower(businessType)
	for _, tc := range typeCosts {
		if strings.Contains(t, tc.keyword) {
			return tc.line, true
		}
	}
	return costLine{}, false
}

func isLargeScope(scope string) bool {
	s := strings.ToLower(scope)
	return strings.Contains(s, "large") || strings.Contains(s, "full") || strings.Contains(s, "scale")
}

func scopeLabel(large bool) string {
	if large {
		return "full-scale"
	}
	return "lean"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
