// Package pricing implements the staged analysis that turns a client change
// request into a defensible quote: clarification, scope classification,
// market research, price synthesis, and verification, coordinated by an
// orchestrator that always produces a result.
package pricing

import (
	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/policy"
)

const stageMaxTokens = 4096

// Engine runs the individual analysis stages.
type Engine struct {
	client completion.Client
	policy *policy.Policy
}

// NewEngine creates an Engine. A nil policy gets the compiled-in defaults.
func NewEngine(client completion.Client, pol *policy.Policy) *Engine {
	if pol == nil {
		pol = policy.Default()
	}
	return &Engine{client: client, policy: pol}
}
