package pricing

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/extract"
	"github.com/scopeguard/pricing-cli/internal/model"
)

// ResearchMarket gathers market pricing for the requested work. The request
// is flagged for the research backend; the router degrades it to a plain
// completion transparently when research is unavailable.
func (e *Engine) ResearchMarket(ctx context.Context, sysCtx string, pctx model.PricingContext) (*model.MarketResearchResult, error) {
	text, err := e.client.Complete(ctx, completion.Request{
		Stage:       "market",
		System:      sysCtx,
		CacheSystem: true,
		Prompt:      marketSystemPrompt + "\n\n" + marketPrompt(pctx),
		MaxTokens:   stageMaxTokens,
		Research:    true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pricing: market research")
	}

	research, err := extract.Object[model.MarketResearchResult](text)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: parse market research")
	}

	switch research.Confidence {
	case "high", "medium", "low":
	default:
		research.Confidence = "low"
	}
	return &research, nil
}

// DefaultMarketResearch is the degraded stand-in when research fails
// entirely: no bands, low confidence, and an insight explaining the gap.
func DefaultMarketResearch() *model.MarketResearchResult {
	return &model.MarketResearchResult{
		MarketInsights: []string{"No live market data was available for this estimate."},
		Confidence:     "low",
		Degraded:       true,
	}
}
