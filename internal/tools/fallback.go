package tools

import (
	"strings"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

var fallbacks = map[string]string{
	models.BlockMarketTrends: "Digital adoption keeps growing across most sectors. Buyers favour tools that " +
		"save time, cut costs or automate repetitive work, and niche audiences underserved by large incumbents " +
		"remain the most accessible entry point for new founders.",
	models.BlockCompetitors: "Expect a mix of large generalist platforms and small specialised players. " +
		"Differentiate on a specific audience, a faster workflow or better service rather than on price alone.",
	models.BlockMarketSize: "TAM: broad global spend in the category, typically in the billions. " +
		"SAM: the reachable segment for your channel and geography, often 1-5% of TAM. " +
		"SOM: a realistic first-year share of 0.1-1% of SAM.",
	models.BlockRisks: "- Market risk (Medium): demand may be weaker than expected.\n" +
		"- Execution risk (Medium): limited time or budget slows delivery.\n" +
		"- Competition risk (High): incumbents can copy visible features quickly.",
	models.BlockValidation: "Validate with 10-20 customer interviews, a landing page with a clear call to action " +
		"and a small paid or manual pilot before building the full product.",
	models.BlockCosts: "Early costs are usually tooling and hosting ($0-$100/month), a domain and basic branding " +
		"($20-$200), plus optional marketing tests ($100-$500). Sweat equity covers most of the build.",
	models.BlockRevenue: "Common models are subscriptions, one-time purchases, service retainers and commissions. " +
		"Start with one simple price point and adjust after the first paying customers.",
	models.BlockViability: "Viability depends on reaching a small set of paying customers quickly. Aim for " +
		"break-even on direct costs within 6-12 months and revisit the idea if validation signals stay weak.",
	models.BlockPersona: "A time-constrained professional or small-business owner who feels the problem weekly, " +
		"already pays for workarounds and discovers tools through peers, communities and search.",
	models.BlockValidationQuestions: "1. How do you solve this problem today?\n" +
		"2. What does it cost you in time or money?\n" +
		"3. What would make you switch to a new solution?\n" +
		"4. How much would you pay for it?",
}

// Fallbacks returns a copy of the default paragraph for every knowledge block.
func Fallbacks() map[string]string {
	out := make(map[string]string, len(fallbacks))
	for k, v := range fallbacks {
		out[k] = v
	}
	return out
}

// FillFallbacks sets the default paragraph for every block that is missing,
// blank or an error string, and returns the names it filled.
func FillFallbacks(blocks map[string]string) []string {
	var filled []string
	for _, name := range models.AllBlocks {
		v := strings.TrimSpace(blocks[name])
		if v == "" || IsError(v) {
			blocks[name] = fallbacks[name]
			filled = append(filled, name)
		}
	}
	return filled
}

// IsError reports whether a tool result is a failure string.
func IsError(result string) bool {
	return strings.HasPrefix(strings.TrimSpace(result), errorPrefix)
}
