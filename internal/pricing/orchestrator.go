package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// AnalyzeInput is everything one orchestration run needs.
type AnalyzeInput struct {
	Freelancer           model.FreelancerProfile
	Rules                model.ProjectRules
	ContextNotes         []string
	RequestText          string
	ClarificationAnswers map[string]string
	Urgency              string
	PastCorrections      []model.PriceCorrection
}

// Clarify is the first-call entry point, before the client has answered
// anything: it generates intake questions and persists nothing. The answers
// come back on a later Analyze call keyed by question text.
func (e *Engine) Clarify(ctx context.Context, input AnalyzeInput) []model.ClarificationQuestion {
	pctx := BuildContext(input.Freelancer, input.Rules, input.ContextNotes, model.RequestContext{
		Description: input.RequestText,
		Urgency:     input.Urgency,
	})
	return e.GenerateQuestions(ctx, systemContext(pctx, input.Rules), pctx)
}

// Analyze runs the full staged analysis. It never returns an error: every
// stage degrades to a documented default, and a panic anywhere collapses to
// the fixed-formula fallback quote with the failure recorded on the result.
func (e *Engine) Analyze(ctx context.Context, input AnalyzeInput) (result *model.OrchestratorResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("analysis panicked, emitting fallback quote", zap.Any("panic", r))
			result = e.fallbackResult(input, fmt.Sprintf("analysis failed: %v", r))
		}
	}()

	start := time.Now()

	pctx := BuildContext(input.Freelancer, input.Rules, input.ContextNotes, model.RequestContext{
		Description:          input.RequestText,
		ClarificationAnswers: input.ClarificationAnswers,
		Urgency:              input.Urgency,
	})
	sysCtx := systemContext(pctx, input.Rules)

	trackStage := func(name string, fn func() error) {
		stageStart := time.Now()
		err := fn()
		fields := []zap.Field{
			zap.String("stage", name),
			zap.Duration("elapsed", time.Since(stageStart)),
		}
		if err != nil {
			zap.L().Warn("stage degraded", append(fields, zap.Error(err))...)
			return
		}
		zap.L().Info("stage complete", fields...)
	}

	// Scope classification and market research are independent. errgroup
	// swallows goroutine panics rather than forwarding them to Wait, so each
	// goroutine captures its own and the orchestrator re-raises after the
	// join, where the recover above turns it into the fallback quote.
	var (
		scope  *model.ScopeAnalysis
		market *model.MarketResearchResult

		scopePanic, marketPanic any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { scopePanic = recover() }()
		trackStage("scope", func() error {
			s, err := e.ClassifyScope(gctx, sysCtx, pctx)
			if err != nil {
				scope = DefaultScopeAnalysis()
				return err
			}
			scope = s
			return nil
		})
		return nil
	})
	g.Go(func() error {
		defer func() { marketPanic = recover() }()
		trackStage("market", func() error {
			m, err := e.ResearchMarket(gctx, sysCtx, pctx)
			if err != nil {
				market = DefaultMarketResearch()
				return err
			}
			market = m
			return nil
		})
		return nil
	})
	_ = g.Wait()
	if scopePanic != nil {
		panic(scopePanic)
	}
	if marketPanic != nil {
		panic(marketPanic)
	}

	hourlyRate := EffectiveHourlyRate(pctx, input.Rules)

	var price *model.PricingResult
	trackStage("pricing", func() error {
		p, err := e.PriceRequest(ctx, sysCtx, pctx, scope, market, input.PastCorrections)
		if err != nil {
			price = e.Fallback(hourlyRate, scope)
			return err
		}
		price = p
		return nil
	})

	var ver *model.VerificationResult
	trackStage("verify", func() error {
		v, err := e.VerifyPricing(ctx, sysCtx, pctx, scope, market, price)
		if err != nil {
			ver = DefaultVerification()
			return err
		}
		ver = v
		return nil
	})

	finalPrice := round2(price.RecommendedPrice + ver.AdjustmentNeeded)
	priceRange := price.PriceRange
	if finalPrice < priceRange.Min {
		priceRange.Min = finalPrice
	}
	if finalPrice > priceRange.Max {
		priceRange.Max = finalPrice
	}

	// The verifier's recommendations replace the profile-gap tips on a
	// successful run; the gap tips remain the floor for degraded output.
	tips := improvementTips(pctx)
	if !ver.Degraded && len(ver.Recommendations) > 0 {
		tips = ver.Recommendations
	}

	confidence := 0.75
	if ver.ConfidenceScore > 0 {
		confidence = ver.ConfidenceScore / 100
	}
	// A formula quote is never high-confidence, whatever the reviewer says.
	if price.Fallback && confidence > price.Confidence {
		confidence = price.Confidence
	}

	result = &model.OrchestratorResult{
		Verdict:       model.VerdictPendingReview,
		Reasoning:     scope.VerdictReasoning,
		ScopeSummary:  scopeSummary(pctx.Request),
		RelevantRules: relevantRules(input.Rules),

		ClarificationAnswers: input.ClarificationAnswers,

		EstimatedHours: price.EstimatedHours,
		SuggestedPrice: finalPrice,
		PriceRange:     &priceRange,
		Complexity:     price.Complexity,
		Confidence:     confidence,

		PriceBreakdown: &price.Breakdown,
		ScopeAnalysis:  scope,
		MarketResearch: market,
		Verification:   ver,

		PricingContextUsed:    &pctx,
		MarketResearchSummary: strings.Join(market.MarketInsights, " "),
		PricingReasoning:      price.Reasoning,
		ImprovementTips:       tips,
		ProfitLeaks:           &price.ProfitLeaks,
	}

	zap.L().Info("analysis complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("suggested_price", finalPrice),
		zap.Float64("confidence", confidence),
		zap.Bool("fallback", price.Fallback),
	)
	return result
}

// systemContext is the cached system block shared by every stage; keeping it
// byte-identical across stages is what lets the backend reuse its prompt
// cache within a run.
func systemContext(pctx model.PricingContext, rules model.ProjectRules) string {
	return "You support a freelancer pricing a client change request. Use this context for every task:\n\n" +
		FormatContext(pctx, rules)
}

// fallbackResult is the floor: a formula quote flagged with the failure.
func (e *Engine) fallbackResult(input AnalyzeInput, errMsg string) *model.OrchestratorResult {
	pctx := BuildContext(input.Freelancer, input.Rules, input.ContextNotes, model.RequestContext{
		Description:          input.RequestText,
		ClarificationAnswers: input.ClarificationAnswers,
		Urgency:              input.Urgency,
	})
	price := e.Fallback(EffectiveHourlyRate(pctx, input.Rules), nil)

	return &model.OrchestratorResult{
		Verdict:       model.VerdictPendingReview,
		Reasoning:     "Automated analysis was unavailable; this quote uses the formula estimate.",
		ScopeSummary:  scopeSummary(pctx.Request),
		RelevantRules: relevantRules(input.Rules),

		ClarificationAnswers: input.ClarificationAnswers,

		EstimatedHours: price.EstimatedHours,
		SuggestedPrice: price.RecommendedPrice,
		PriceRange:     &price.PriceRange,
		Complexity:     price.Complexity,
		Confidence:     price.Confidence,

		PriceBreakdown:     &price.Breakdown,
		PricingContextUsed: &pctx,
		PricingReasoning:   price.Reasoning,
		ImprovementTips:    improvementTips(pctx),

		Error: errMsg,
	}
}

// scopeSummary restates the request plus the client's clarifications as the
// human-readable summary shown to the freelancer.
func scopeSummary(req model.RequestContext) string {
	if len(req.ClarificationAnswers) == 0 {
		return req.Description
	}
	var b strings.Builder
	b.WriteString(req.Description)
	b.WriteString("\n\nClarifications:\n")
	for _, q := range sortedKeys(req.ClarificationAnswers) {
		fmt.Fprintf(&b, "- %s %s\n", q, req.ClarificationAnswers[q])
	}
	return strings.TrimRight(b.String(), "\n")
}

func relevantRules(rules model.ProjectRules) []string {
	out := make([]string, 0, len(rules.CustomRules))
	for _, r := range rules.CustomRules {
		out = append(out, r.Rule)
	}
	return out
}

// improvementTips tells the freelancer which missing profile data would make
// the next quote better.
func improvementTips(pctx model.PricingContext) []string {
	var tips []string
	if pctx.Freelancer.Location == "" {
		tips = append(tips, "Add your location for market-specific pricing")
	}
	if len(pctx.Freelancer.Specializations) == 0 {
		tips = append(tips, "Set your specializations for accurate rate lookup")
	}
	if pctx.Project.OriginalContractPrice <= 0 {
		tips = append(tips, "Define the original contract price for proportionality checks")
	}
	return tips
}
