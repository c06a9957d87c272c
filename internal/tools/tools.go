// Package tools computes knowledge blocks. Each tool sends one fixed template
// to the model and returns the answer; failures come back as strings starting
// with "Error:" so the precomputer can replace them.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/llm"
)

const (
	MaxOutputTokens = 400
	Temperature     = 0.3

	errorPrefix = "Error:"
)

const toolSystem = "You are a concise startup market analyst. Answer with short paragraphs and " +
	"bullet points, and use concrete figures wherever you can."

func ask(ctx context.Context, c llm.Client, tool, prompt string) string {
	out, err := c.Complete(ctx, llm.Request{
		System:          toolSystem,
		User:            prompt,
		MaxOutputTokens: MaxOutputTokens,
		Temperature:     Temperature,
	})
	if err != nil {
		return fmt.Sprintf("%s %s failed: %v", errorPrefix, tool, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fmt.Sprintf("%s %s returned an empty response", errorPrefix, tool)
	}
	return out
}

// MarketTrends describes current trends for a topic within a market segment.
func MarketTrends(ctx context.Context, c llm.Client, topic, marketSegment string) string {
	return ask(ctx, c, "market_trends", fmt.Sprintf(
		"List the 3-5 most important current market trends for %q in the %q segment. "+
			"For each trend give one sentence on why it matters to a new startup and a growth figure if known.",
		topic, marketSegment))
}

// Competitors summarises the competitive landscape for a startup idea.
func Competitors(ctx context.Context, c llm.Client, startupIdea, industry string) string {
	return ask(ctx, c, "competitors", fmt.Sprintf(
		"Startup idea: %s\nIndustry: %s\n"+
			"Name 3-5 typical competitors or competitor types, their positioning and one gap a newcomer could exploit.",
		startupIdea, industry))
}

// MarketSize estimates TAM, SAM and SOM for a topic and audience.
func MarketSize(ctx context.Context, c llm.Client, topic, targetAudience string) string {
	return ask(ctx, c, "market_size", fmt.Sprintf(
		"Estimate the market size for %q targeting %q.\n"+
			"Respond with three lines: TAM, SAM and SOM, each with a concrete dollar figure and a one-line rationale.",
		topic, targetAudience))
}

// Validation outlines how to validate an idea cheaply.
func Validation(ctx context.Context, c llm.Client, idea, targetMarket, businessModel string) string {
	return ask(ctx, c, "validation", fmt.Sprintf(
		"Idea: %s\nTarget market: %s\nBusiness model: %s\n"+
			"Give a 4-step validation plan with a success metric for each step.",
		idea, targetMarket, businessModel))
}

// Risks lists the main risks of an idea rated Low, Medium or High.
func Risks(ctx context.Context, c llm.Client, idea string) string {
	return ask(ctx, c, "risks", fmt.Sprintf(
		"Idea: %s\nList the top 4 risks as bullets in the form \"- <risk> (<Low|Medium|High>): <mitigation>\".",
		idea))
}

// Revenue proposes revenue streams for a business model.
func Revenue(ctx context.Context, c llm.Client, businessModel, targetCustomers, pricingModel string) string {
	return ask(ctx, c, "revenue", fmt.Sprintf(
		"Business model: %s\nTarget customers: %s\nPricing model: %s\n"+
			"Propose 3 revenue streams with example price points and a realistic first-year revenue range.",
		businessModel, targetCustomers, pricingModel))
}

// Viability judges whether an idea can sustain itself over a time horizon.
func Viability(ctx context.Context, c llm.Client, idea, estimatedCosts, estimatedRevenue, timeHorizon string) string {
	return ask(ctx, c, "viability", fmt.Sprintf(
		"Idea: %s\nEstimated costs: %s\nEstimated revenue: %s\nTime horizon: %s\n"+
			"Assess financial viability in 4 bullets: break-even point, margin, key assumption, verdict.",
		idea, estimatedCosts, estimatedRevenue, timeHorizon))
}

// Persona sketches the primary customer persona.
func Persona(ctx context.Context, c llm.Client, startupIdea, targetMarket string) string {
	return ask(ctx, c, "persona", fmt.Sprintf(
		"Startup idea: %s\nTarget market: %s\n"+
			"Describe the primary customer persona: role, age range, top 3 pain points, buying triggers and channels.",
		startupIdea, targetMarket))
}

// ValidationQuestions returns interview questions for early customers.
func ValidationQuestions(ctx context.Context, c llm.Client, startupIdea string) string {
	return ask(ctx, c, "validation_questions", fmt.Sprintf(
		"Startup idea: %s\nWrite 5 numbered customer-discovery interview questions that avoid leading the interviewee.",
		startupIdea))
}
