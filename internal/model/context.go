// Package model defines the shared types flowing through the pricing
// pipeline: the immutable pricing context, per-stage result types, and the
// request record the orchestrator writes back to.
package model

// FreelancerProfile is the freelancer-side half of the pricing context,
// sourced from the user record.
type FreelancerProfile struct {
	Location        string   `json:"location,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
	HourlyRate      float64  `json:"hourlyRate,omitempty"`
	Positioning     string   `json:"positioning,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	Overhead        float64  `json:"overhead"`
	ProfitMargin    float64  `json:"profitMargin"`
}

// CustomRule is a freelancer-defined pricing rule attached to a project.
type CustomRule struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// ProjectRules holds the contracted terms for a project: rate, deliverables,
// revision allowance, and any free-text contract material.
type ProjectRules struct {
	HourlyRate            float64      `json:"hourlyRate,omitempty"`
	Currency              string       `json:"currency,omitempty"`
	Deliverables          []string     `json:"deliverables,omitempty"`
	RevisionsIncluded     int          `json:"revisionsIncluded,omitempty"`
	RevisionsUsed         int          `json:"revisionsUsed,omitempty"`
	CustomRules           []CustomRule `json:"customRules,omitempty"`
	RulesSummary          string       `json:"rulesSummary,omitempty"`
	ContractText          string       `json:"contractText,omitempty"`
	ProjectType           string       `json:"projectType,omitempty"`
	OriginalContractPrice float64      `json:"originalContractPrice,omitempty"`
	ClientLocation        string       `json:"clientLocation,omitempty"`
	ProjectTimeline       string       `json:"projectTimeline,omitempty"`
}

// ProjectContext is the project-side half of the pricing context.
type ProjectContext struct {
	OriginalContractPrice float64  `json:"originalContractPrice,omitempty"`
	ProjectType           string   `json:"projectType,omitempty"`
	ClientLocation        string   `json:"clientLocation,omitempty"`
	ProjectTimeline       string   `json:"projectTimeline,omitempty"`
	Deliverables          []string `json:"deliverables,omitempty"`
	Currency              string   `json:"currency"`
}

// RequestContext carries the client's change request and any clarification
// answers keyed by question text.
type RequestContext struct {
	Description          string            `json:"description"`
	ClarificationAnswers map[string]string `json:"clarificationAnswers,omitempty"`
	Urgency              string            `json:"urgency,omitempty"`
}

// PricingContext is the read-only snapshot assembled once per orchestration
// run and passed into every stage. It must not be mutated after construction.
type PricingContext struct {
	Freelancer   FreelancerProfile `json:"freelancer"`
	Project      ProjectContext    `json:"project"`
	Request      RequestContext    `json:"request"`
	ContextNotes []string          `json:"contextNotes,omitempty"`
}

// PriceCorrection records a prior human edit to an AI-suggested price on the
// same project, used as soft precedent by the pricing stage.
type PriceCorrection struct {
	RequestText    string  `json:"requestText"`
	AIPrice        float64 `json:"aiPrice"`
	CorrectedPrice float64 `json:"correctedPrice"`
	Reason         string  `json:"reason,omitempty"`
}
