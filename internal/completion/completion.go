// Package completion routes stage prompts to language-model backends. It
// owns rate limiting, retries, circuit breaking, and the transparent
// degradation from the research backend to a plain completion when research
// is unavailable.
package completion

import "context"

// Request is a single stage completion.
type Request struct {
	// Stage names the pipeline stage for logging and cost attribution.
	Stage string

	// System is the shared system prompt. When CacheSystem is set it is
	// sent with a cache breakpoint so later stages reuse it.
	System      string
	CacheSystem bool

	Prompt      string
	MaxTokens   int64
	Temperature *float64

	// Research routes the request through the web-research backend first.
	Research bool

	// Light selects the cheaper model tier.
	Light bool
}

// Client completes stage prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
