package model

// ClarificationQuestion is a single question surfaced to the client before
// pricing. Question types mirror the intake form controls.
type ClarificationQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	HelpText string   `json:"helpText,omitempty"`
	Type     string   `json:"type"` // "text", "select", or "multiselect"
	Options  []string `json:"options,omitempty"`
	Priority int      `json:"priority"` // 1 = must ask, 2 = should ask, 3 = could ask
	Category string   `json:"category"`
}

// Scope verdicts.
const (
	VerdictInScope           = "IN_SCOPE"
	VerdictOutOfScope        = "OUT_OF_SCOPE"
	VerdictBoundaryCase      = "BOUNDARY_CASE"
	VerdictClarificationOnly = "CLARIFICATION_ONLY"
)

// Scope change classifications.
const (
	ChangeAddition      = "ADDITION"
	ChangeModification  = "MODIFICATION"
	ChangeExpansion     = "EXPANSION"
	ChangeClarification = "CLARIFICATION"
	ChangeReduction     = "REDUCTION"
)

// ScopeChange is one discrete delta between the contracted scope and the
// client's request, independently scored for impact.
type ScopeChange struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Classification string `json:"classification"`
	DirectImpact   int    `json:"directImpact"` // 1-5
	RippleEffect   int    `json:"rippleEffect"` // 1-5
	RiskLevel      string `json:"riskLevel"`    // low, medium, high
}

// ContractAlignment relates the request to the original contract.
type ContractAlignment struct {
	MatchingDeliverables []string `json:"matchingDeliverables,omitempty"`
	ConflictingClauses   []string `json:"conflictingClauses,omitempty"`
	GrayAreas            []string `json:"grayAreas,omitempty"`
}

// ScopeAnalysis is the scope classification stage's output.
type ScopeAnalysis struct {
	Verdict           string            `json:"verdict"`
	VerdictReasoning  string            `json:"verdictReasoning,omitempty"`
	ContractAlignment ContractAlignment `json:"contractAlignment"`
	Changes           []ScopeChange     `json:"changes,omitempty"`
	OverallSeverity   string            `json:"overallSeverity"` // minor, moderate, significant, major
	EffortMultiplier  float64           `json:"effortMultiplier"`
	IsOutOfScope      bool              `json:"isOutOfScope"`
	RecommendedAction string            `json:"recommendedAction,omitempty"` // approve_free, price_as_change_order, negotiate, decline
	Degraded          bool              `json:"degraded,omitempty"`
}

// Normalize recomputes derived fields from their source of truth. The model
// sometimes returns an isOutOfScope boolean that disagrees with its own
// verdict enum; the verdict wins.
func (s *ScopeAnalysis) Normalize() {
	s.IsOutOfScope = s.Verdict == VerdictOutOfScope
	if s.EffortMultiplier < 1.0 {
		s.EffortMultiplier = 1.0
	}
	if s.EffortMultiplier > 3.0 {
		s.EffortMultiplier = 3.0
	}
	switch s.OverallSeverity {
	case "minor", "moderate", "significant", "major":
	default:
		s.OverallSeverity = "moderate"
	}
}

// ComplexityForSeverity maps a scope severity onto the pricing complexity
// label consumed downstream.
func ComplexityForSeverity(severity string) string {
	switch severity {
	case "major", "significant":
		return "complex"
	case "moderate":
		return "moderate"
	default:
		return "simple"
	}
}

// PriceBand is an inclusive min/max dollar range.
type PriceBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketPriceRange carries the two bands the market research stage must
// produce: a cold-start standalone quote and a discounted add-on quote for
// marginal work on an active engagement.
type MarketPriceRange struct {
	Standalone *PriceBand `json:"standalone,omitempty"`
	AsAddOn    *PriceBand `json:"asAddOn,omitempty"`
}

// MarketResearchResult is the market research stage's output.
type MarketResearchResult struct {
	MarketPriceRange MarketPriceRange `json:"marketPriceRange"`
	IsLikelyAddOn    bool             `json:"isLikelyAddOn"`
	MarketInsights   []string         `json:"marketInsights,omitempty"`
	Confidence       string           `json:"confidence"` // high, medium, low
	Degraded         bool             `json:"degraded,omitempty"`
}

// AnchorBand returns the band downstream pricing should anchor to, selected
// by IsLikelyAddOn, or nil when no usable band was produced.
func (m *MarketResearchResult) AnchorBand() *PriceBand {
	if m == nil {
		return nil
	}
	if m.IsLikelyAddOn && m.MarketPriceRange.AsAddOn != nil {
		return m.MarketPriceRange.AsAddOn
	}
	return m.MarketPriceRange.Standalone
}

// PriceBreakdown itemizes the components of a recommended price.
type PriceBreakdown struct {
	LaborCost    float64 `json:"laborCost"`
	Overhead     float64 `json:"overhead"`
	Profit       float64 `json:"profit"`
	RiskPremium  float64 `json:"riskPremium"`
	ScopePremium float64 `json:"scopePremium"`
}

// ProfitLeaks reports hidden-cost categories detected in the request and the
// buffer added to absorb them.
type ProfitLeaks struct {
	Identified   []string `json:"identified,omitempty"`
	BufferAdded  float64  `json:"bufferAdded"`
	BufferReason string   `json:"bufferReason,omitempty"`
}

// PricingResult is the pricing stage's output.
type PricingResult struct {
	RecommendedPrice float64        `json:"recommendedPrice"`
	PriceRange       PriceBand      `json:"priceRange"`
	EstimatedHours   float64        `json:"estimatedHours"`
	HourlyRate       float64        `json:"hourlyRate"`
	Complexity       string         `json:"complexity"` // simple, moderate, complex
	Breakdown        PriceBreakdown `json:"breakdown"`
	ProfitLeaks      ProfitLeaks    `json:"profitLeaks"`
	Confidence       float64        `json:"confidence"` // 0-1
	Reasoning        string         `json:"reasoning,omitempty"`
	Fallback         bool           `json:"fallback,omitempty"`
}

// VerificationResult is the verification stage's output. AdjustmentNeeded is
// an additive dollar correction, expected to be zero in nearly every run; it
// is a numerical-error safety valve, not a re-pricing mechanism.
type VerificationResult struct {
	OverallStatus     string   `json:"overallStatus"` // passed, passed_with_warnings, failed
	ConfidenceScore   float64  `json:"confidenceScore"` // 0-100
	Issues            []string `json:"issues,omitempty"`
	Recommendations   []string `json:"recommendations,omitempty"`
	ApprovedForClient bool     `json:"approvedForClient"`
	AdjustmentNeeded  float64  `json:"adjustmentNeeded"`
	Degraded          bool     `json:"degraded,omitempty"`
}

// VerdictPendingReview is the only verdict the orchestrator ever emits to a
// requester; the freelancer always makes the scope call.
const VerdictPendingReview = "pending_review"

// OrchestratorResult is the terminal record of one orchestration run. It is
// persisted onto the owning request and never mutated afterward except by a
// wholesale re-run.
type OrchestratorResult struct {
	Verdict       string   `json:"verdict"`
	Reasoning     string   `json:"reasoning"`
	ScopeSummary  string   `json:"scopeSummary"`
	RelevantRules []string `json:"relevantRules"`

	ClarificationQuestions []ClarificationQuestion `json:"clarificationQuestions,omitempty"`
	ClarificationAnswers   map[string]string       `json:"clarificationAnswers,omitempty"`

	EstimatedHours float64    `json:"estimatedHours,omitempty"`
	SuggestedPrice float64    `json:"suggestedPrice,omitempty"`
	PriceRange     *PriceBand `json:"priceRange,omitempty"`
	Complexity     string     `json:"complexity,omitempty"`
	Confidence     float64    `json:"confidence"`

	PriceBreakdown *PriceBreakdown       `json:"priceBreakdown,omitempty"`
	ScopeAnalysis  *ScopeAnalysis        `json:"scopeAnalysis,omitempty"`
	MarketResearch *MarketResearchResult `json:"marketResearch,omitempty"`
	Verification   *VerificationResult   `json:"verification,omitempty"`

	PricingContextUsed    *PricingContext `json:"pricingContextUsed,omitempty"`
	MarketResearchSummary string          `json:"marketResearchSummary,omitempty"`
	PricingReasoning      string          `json:"pricingReasoning,omitempty"`
	ImprovementTips       []string        `json:"improvementTips,omitempty"`
	ProfitLeaks           *ProfitLeaks    `json:"profitLeaks,omitempty"`

	Error string `json:"error,omitempty"`
}
