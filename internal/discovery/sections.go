package discovery

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// Heading variants in match order.
var (
	researchMarkers = []string{
		"### Idea Research Report",
		"## SECTION 1: IDEA RESEARCH REPORT",
		"## IDEA RESEARCH REPORT",
		"Idea Research Report",
	}
	recommendationMarkers = []string{
		"### Comprehensive Recommendation Report",
		"## SECTION 2: PERSONALIZED RECOMMENDATIONS",
		"## PERSONALIZED RECOMMENDATIONS",
		"Comprehensive Recommendation Report",
	}
)

// Minimum section sizes for a usable result.
const (
	minAnalysisChars = 100
	minSectionChars  = 200
)

func findMarker(text string, markers []string) int {
	for _, m := range markers {
		if i := strings.Index(text, m); i >= 0 {
			return i
		}
	}
	return -1
}

// ParseSections splits a Stage 2 response into the research and
// recommendation sections. Text with neither heading is all research.
func ParseSections(text string) (research, recommendations string) {
	ri := findMarker(text, researchMarkers)
	ci := findMarker(text, recommendationMarkers)

	switch {
	case ri >= 0 && ci >= 0:
		if ri < ci {
			research, recommendations = text[ri:ci], text[ci:]
		} else {
			recommendations, research = text[ci:ri], text[ri:]
		}
	case ri >= 0:
		research = text[ri:]
	case ci >= 0:
		recommendations = text[ci:]
	default:
		research = text
	}
	return strings.TrimSpace(research), strings.TrimSpace(recommendations)
}

// Validate reports whether o carries at least one usable section.
func Validate(o models.Outputs) bool {
	return nonSpaceLen(o.ProfileAnalysis) > minAnalysisChars ||
		utf8.RuneCountInString(strings.TrimSpace(o.StartupIdeasResearch)) > minSectionChars ||
		utf8.RuneCountInString(strings.TrimSpace(o.PersonalizedRecommendations)) > minSectionChars
}

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
