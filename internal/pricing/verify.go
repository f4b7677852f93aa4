package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/extract"
	"github.com/scopeguard/pricing-cli/internal/model"
)

// VerifyPricing reviews the proposed quote for consistency. The adjustment
// it may return is additive and bounded; a correction large enough to change
// the quote materially is discarded as an attempted re-price.
func (e *Engine) VerifyPricing(ctx context.Context, sysCtx string, pctx model.PricingContext, scope *model.ScopeAnalysis, market *model.MarketResearchResult, price *model.PricingResult) (*model.VerificationResult, error) {
	text, err := e.client.Complete(ctx, completion.Request{
		Stage:       "verify",
		System:      sysCtx,
		CacheSystem: true,
		Prompt:      verifySystemPrompt + "\n\n" + verifyPrompt(pctx, scope, market, price),
		MaxTokens:   stageMaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pricing: verify")
	}

	ver, err := extract.Object[model.VerificationResult](text)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: parse verification")
	}

	e.normalizeVerification(&ver, price)
	return &ver, nil
}

func (e *Engine) normalizeVerification(ver *model.VerificationResult, price *model.PricingResult) {
	switch ver.OverallStatus {
	case "passed", "passed_with_warnings", "failed":
	default:
		ver.OverallStatus = "passed_with_warnings"
	}

	if ver.ConfidenceScore < 0 {
		ver.ConfidenceScore = 0
	}
	if ver.ConfidenceScore > 100 {
		ver.ConfidenceScore = 100
	}

	maxAdjustment := price.RecommendedPrice * e.policy.Verification.MaxAdjustmentFraction
	if math.Abs(ver.AdjustmentNeeded) > maxAdjustment {
		ver.Issues = append(ver.Issues, fmt.Sprintf(
			"Discarded oversized adjustment of %.2f; corrections are limited to %.0f%% of the price.",
			ver.AdjustmentNeeded, e.policy.Verification.MaxAdjustmentFraction*100))
		ver.AdjustmentNeeded = 0
	}
}

// DefaultVerification is the degraded stand-in when review fails: pass the
// quote through untouched with middling confidence.
func DefaultVerification() *model.VerificationResult {
	return &model.VerificationResult{
		OverallStatus:     "passed_with_warnings",
		ConfidenceScore:   75,
		Issues:            []string{"Automated review was unavailable for this quote."},
		ApprovedForClient: true,
		AdjustmentNeeded:  0,
		Degraded:          true,
	}
}
