package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/extract"
	"github.com/scopeguard/pricing-cli/internal/model"
)

// PriceRequest synthesizes a price from the scope analysis and market
// research, then normalizes the result so downstream consumers never see an
// inconsistent quote.
func (e *Engine) PriceRequest(ctx context.Context, sysCtx string, pctx model.PricingContext, scope *model.ScopeAnalysis, market *model.MarketResearchResult, corrections []model.PriceCorrection) (*model.PricingResult, error) {
	text, err := e.client.Complete(ctx, completion.Request{
		Stage:       "pricing",
		System:      sysCtx,
		CacheSystem: true,
		Prompt:      pricingSystemPrompt + "\n\n" + pricingPrompt(pctx, scope, market, corrections),
		MaxTokens:   stageMaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pricing: price request")
	}

	result, err := extract.Object[model.PricingResult](text)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: parse pricing result")
	}
	if result.RecommendedPrice <= 0 {
		return nil, eris.New("pricing: model returned non-positive price")
	}

	e.normalizePrice(&result, pctx, scope, market)
	return &result, nil
}

// normalizePrice enforces the invariants the model is asked for but cannot
// be trusted to hold.
func (e *Engine) normalizePrice(pr *model.PricingResult, pctx model.PricingContext, scope *model.ScopeAnalysis, market *model.MarketResearchResult) {
	switch pr.Complexity {
	case "simple", "moderate", "complex":
	default:
		pr.Complexity = model.ComplexityForSeverity(scope.OverallSeverity)
	}

	if pr.Confidence <= 0 || pr.Confidence > 1 {
		pr.Confidence = 0.5
	}

	// The recommendation must sit within tolerance of the band the market
	// stage selected. A model price far outside it is clamped and the
	// model's range replaced with the band, so the quote stays defensible
	// against the research that backs it.
	if band := market.AnchorBand(); band != nil && !market.Degraded && band.Max > 0 {
		tol := e.policy.Verification.MarketTolerance
		lo := round2(band.Min * (1 - tol))
		hi := round2(band.Max * (1 + tol))
		if pr.RecommendedPrice < lo || pr.RecommendedPrice > hi {
			original := pr.RecommendedPrice
			pr.RecommendedPrice = round2(math.Min(math.Max(original, lo), hi))
			pr.PriceRange = *band
			pr.Reasoning = strings.TrimSpace(pr.Reasoning + fmt.Sprintf(
				" Adjusted from %.2f to stay within the researched market band %.2f-%.2f.",
				original, lo, hi))
		}
	}

	// The range must bracket the recommendation.
	if pr.PriceRange.Min <= 0 && pr.PriceRange.Max <= 0 {
		pr.PriceRange.Min = round2(pr.RecommendedPrice * e.policy.Fallback.RangeLowFactor)
		pr.PriceRange.Max = round2(pr.RecommendedPrice * e.policy.Fallback.RangeHighFactor)
	}
	if pr.PriceRange.Min > pr.PriceRange.Max {
		pr.PriceRange.Min, pr.PriceRange.Max = pr.PriceRange.Max, pr.PriceRange.Min
	}
	if pr.RecommendedPrice < pr.PriceRange.Min {
		pr.PriceRange.Min = pr.RecommendedPrice
	}
	if pr.RecommendedPrice > pr.PriceRange.Max {
		pr.PriceRange.Max = pr.RecommendedPrice
	}

	// Local profit-leak audit: when the model skipped its hidden-cost scan
	// but the request text plainly suggests one, add the policy buffer.
	if pr.ProfitLeaks.BufferAdded == 0 {
		identified, bufferPct := e.policy.DetectLeaks(pctx.Request.Description)
		if bufferPct > 0 {
			buffer := round2(pr.RecommendedPrice * bufferPct)
			pr.ProfitLeaks.Identified = mergeLeaks(pr.ProfitLeaks.Identified, identified)
			pr.ProfitLeaks.BufferAdded = buffer
			pr.ProfitLeaks.BufferReason = fmt.Sprintf(
				"Buffer for likely hidden costs: %s.", strings.Join(identified, ", "))
			pr.RecommendedPrice = round2(pr.RecommendedPrice + buffer)
			pr.PriceRange.Max = round2(pr.PriceRange.Max + buffer)
		}
	}
}

// Fallback computes the fixed-formula quote used when the pipeline cannot
// produce a model-grounded price. It is deterministic and never fails.
func (e *Engine) Fallback(hourlyRate float64, scope *model.ScopeAnalysis) *model.PricingResult {
	fb := e.policy.Fallback
	if hourlyRate <= 0 {
		hourlyRate = fb.DefaultRate
	}

	labor := hourlyRate * fb.Hours
	price := round2(labor * fb.Multiplier)

	complexity := "moderate"
	if scope != nil {
		complexity = model.ComplexityForSeverity(scope.OverallSeverity)
	}

	return &model.PricingResult{
		RecommendedPrice: price,
		PriceRange: model.PriceBand{
			Min: round2(price * fb.RangeLowFactor),
			Max: round2(price * fb.RangeHighFactor),
		},
		EstimatedHours: fb.Hours,
		HourlyRate:     hourlyRate,
		Complexity:     complexity,
		Breakdown: model.PriceBreakdown{
			LaborCost: round2(labor),
			Overhead:  round2(labor * defaultOverhead),
			Profit:    round2(price - labor - labor*defaultOverhead),
		},
		Confidence: fb.Confidence,
		Reasoning:  "Formula estimate from the hourly rate; detailed analysis was unavailable.",
		Fallback:   true,
	}
}

func mergeLeaks(existing, detected []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range detected {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
