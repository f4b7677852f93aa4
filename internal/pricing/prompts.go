package pricing

import (
	"fmt"
	"strings"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// Stage system prompts. Each stage shares the rendered pricing context as a
// cached system block; these instructions ride on top of it.

const clarifySystemPrompt = `You help a freelancer price a client's change request.
Generate the few clarification questions whose answers would most change the price.
Ask only what the context does not already answer. Respond with JSON only:
{
  "questions": [
    {
      "id": "q1",
      "question": "...",
      "helpText": "...",
      "type": "text" | "select" | "multiselect",
      "options": ["..."],
      "priority": 1,
      "category": "scope" | "timeline" | "budget" | "technical" | "other"
    }
  ]
}
Priority 1 means the answer is required to price at all. Never ask more than %d questions.`

const scopeSystemPrompt = `You are a contract scope analyst for a freelancer.
Compare the client's change request against the contracted deliverables and rules.
Decompose it into discrete changes and score each one. Respond with JSON only:
{
  "verdict": "IN_SCOPE" | "OUT_OF_SCOPE" | "BOUNDARY_CASE" | "CLARIFICATION_ONLY",
  "verdictReasoning": "...",
  "contractAlignment": {
    "matchingDeliverables": ["..."],
    "conflictingClauses": ["..."],
    "grayAreas": ["..."]
  },
  "changes": [
    {
      "id": "c1",
      "description": "...",
      "classification": "ADDITION" | "MODIFICATION" | "EXPANSION" | "CLARIFICATION" | "REDUCTION",
      "directImpact": 1-5,
      "rippleEffect": 1-5,
      "riskLevel": "low" | "medium" | "high"
    }
  ],
  "overallSeverity": "minor" | "moderate" | "significant" | "major",
  "effortMultiplier": 1.0-3.0,
  "isOutOfScope": true | false,
  "recommendedAction": "approve_free" | "price_as_change_order" | "negotiate" | "decline"
}
Judge against what was contracted, not against what would be reasonable to ask.`

const marketSystemPrompt = `You are a market rate researcher for freelance and contractor work.
Find what the requested work goes for in the freelancer's market, using their
location, specialization, and positioning. Report two distinct price bands:
- "standalone": what a new provider would quote for this work cold
- "asAddOn": what it costs as incremental work inside an existing engagement,
  where discovery, setup, and client onboarding are already paid for
Also judge which band applies here. Respond with JSON only:
{
  "marketPriceRange": {
    "standalone": {"min": 0, "max": 0},
    "asAddOn": {"min": 0, "max": 0}
  },
  "isLikelyAddOn": true | false,
  "marketInsights": ["..."],
  "confidence": "high" | "medium" | "low"
}`

const pricingSystemPrompt = `You are a pricing strategist for a freelancer.
Produce a defensible price for the change request using the scope analysis and
market research provided. Rules:
- Anchor inside the applicable market band. Do not anchor to the bottom of the
  band: competent professionals price at or above the midpoint unless the scope
  analysis says the work is trivial.
- Estimate hours honestly, then build up: labor at the effective hourly rate,
  overhead, profit margin, risk premium for high-risk changes, scope premium
  from the effort multiplier.
- Audit the request for hidden costs that leak profit: travel, disposal,
  permits, rework, third-party coordination, admin overhead. If any apply, add
  an explicit buffer and say why in bufferReason.
- Respect prior price corrections listed below; they are precedent for how
  this freelancer actually prices.
Respond with JSON only:
{
  "recommendedPrice": 0,
  "priceRange": {"min": 0, "max": 0},
  "estimatedHours": 0,
  "hourlyRate": 0,
  "complexity": "simple" | "moderate" | "complex",
  "breakdown": {"laborCost": 0, "overhead": 0, "profit": 0, "riskPremium": 0, "scopePremium": 0},
  "profitLeaks": {"identified": ["..."], "bufferAdded": 0, "bufferReason": "..."},
  "confidence": 0.0-1.0,
  "reasoning": "..."
}`

const verifySystemPrompt = `You are a pricing reviewer. Check the proposed quote for internal
consistency and market sanity. You may flag issues and suggest a small additive
arithmetic correction, but you do not re-price: adjustmentNeeded is a dollar
delta for numerical errors only and should almost always be 0.
Respond with JSON only:
{
  "overallStatus": "passed" | "passed_with_warnings" | "failed",
  "confidenceScore": 0-100,
  "issues": ["..."],
  "recommendations": ["..."],
  "approvedForClient": true | false,
  "adjustmentNeeded": 0
}`

func clarifyPrompt(pctx model.PricingContext) string {
	return formatRequest(pctx.Request) + "\nWhat do you need to know before pricing this?"
}

func scopePrompt(pctx model.PricingContext) string {
	return formatRequest(pctx.Request) + "\nClassify this request against the contracted scope."
}

func marketPrompt(pctx model.PricingContext) string {
	var b strings.Builder
	b.WriteString(formatRequest(pctx.Request))
	fmt.Fprintf(&b, "\nResearch market pricing for this work")
	if pctx.Freelancer.Location != "" {
		fmt.Fprintf(&b, " in %s", pctx.Freelancer.Location)
	}
	b.WriteString(".")
	return b.String()
}

func pricingPrompt(pctx model.PricingContext, scope *model.ScopeAnalysis, market *model.MarketResearchResult, corrections []model.PriceCorrection) string {
	var b strings.Builder
	b.WriteString(formatRequest(pctx.Request))

	b.WriteString("\n## Scope Analysis\n")
	fmt.Fprintf(&b, "- Verdict: %s (%s severity, effort multiplier %.2f)\n",
		scope.Verdict, scope.OverallSeverity, scope.EffortMultiplier)
	for _, c := range scope.Changes {
		fmt.Fprintf(&b, "- [%s] %s (impact %d, ripple %d, risk %s)\n",
			c.Classification, c.Description, c.DirectImpact, c.RippleEffect, c.RiskLevel)
	}

	b.WriteString("\n## Market Research\n")
	if band := market.AnchorBand(); band != nil {
		kind := "standalone"
		if market.IsLikelyAddOn {
			kind = "add-on"
		}
		fmt.Fprintf(&b, "- Applicable band (%s): %s - %s\n", kind,
			FormatMoney(pctx.Project.Currency, band.Min),
			FormatMoney(pctx.Project.Currency, band.Max))
	}
	for _, insight := range market.MarketInsights {
		fmt.Fprintf(&b, "- %s\n", insight)
	}
	fmt.Fprintf(&b, "- Research confidence: %s\n", market.Confidence)

	if len(corrections) > 0 {
		b.WriteString("\n## Prior Price Corrections\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- %q: suggested %s, freelancer set %s",
				truncate(c.RequestText, 120),
				FormatMoney(pctx.Project.Currency, c.AIPrice),
				FormatMoney(pctx.Project.Currency, c.CorrectedPrice))
			if c.Reason != "" {
				fmt.Fprintf(&b, " (%s)", c.Reason)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nPrice this change request.")
	return b.String()
}

func verifyPrompt(pctx model.PricingContext, scope *model.ScopeAnalysis, market *model.MarketResearchResult, price *model.PricingResult) string {
	var b strings.Builder
	b.WriteString(formatRequest(pctx.Request))

	b.WriteString("\n## Proposed Quote\n")
	fmt.Fprintf(&b, "- Recommended price: %s\n", FormatMoney(pctx.Project.Currency, price.RecommendedPrice))
	fmt.Fprintf(&b, "- Range: %s - %s\n",
		FormatMoney(pctx.Project.Currency, price.PriceRange.Min),
		FormatMoney(pctx.Project.Currency, price.PriceRange.Max))
	fmt.Fprintf(&b, "- Hours: %.1f at %s\n", price.EstimatedHours,
		FormatMoney(pctx.Project.Currency, price.HourlyRate))
	fmt.Fprintf(&b, "- Breakdown: labor %.2f, overhead %.2f, profit %.2f, risk %.2f, scope %.2f\n",
		price.Breakdown.LaborCost, price.Breakdown.Overhead, price.Breakdown.Profit,
		price.Breakdown.RiskPremium, price.Breakdown.ScopePremium)
	fmt.Fprintf(&b, "- Scope verdict: %s (%s)\n", scope.Verdict, scope.OverallSeverity)
	if band := market.AnchorBand(); band != nil {
		fmt.Fprintf(&b, "- Market band: %s - %s\n",
			FormatMoney(pctx.Project.Currency, band.Min),
			FormatMoney(pctx.Project.Currency, band.Max))
	}

	b.WriteString("\nReview this quote.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
