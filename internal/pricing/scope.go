package pricing

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/extract"
	"github.com/scopeguard/pricing-cli/internal/model"
)

// ClassifyScope compares the request against the contracted scope.
func (e *Engine) ClassifyScope(ctx context.Context, sysCtx string, pctx model.PricingContext) (*model.ScopeAnalysis, error) {
	text, err := e.client.Complete(ctx, completion.Request{
		Stage:       "scope",
		System:      sysCtx,
		CacheSystem: true,
		Prompt:      scopeSystemPrompt + "\n\n" + scopePrompt(pctx),
		MaxTokens:   stageMaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pricing: classify scope")
	}

	analysis, err := extract.Object[model.ScopeAnalysis](text)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: parse scope analysis")
	}

	analysis.Normalize()
	return &analysis, nil
}

// DefaultScopeAnalysis is the degraded stand-in when classification fails:
// treat the request as a moderate boundary case with no effort premium, and
// let the freelancer make the call.
func DefaultScopeAnalysis() *model.ScopeAnalysis {
	return &model.ScopeAnalysis{
		Verdict:           model.VerdictBoundaryCase,
		VerdictReasoning:  "Scope classification was unavailable; review manually.",
		OverallSeverity:   "moderate",
		EffortMultiplier:  1.0,
		RecommendedAction: "price_as_change_order",
		Degraded:          true,
	}
}
