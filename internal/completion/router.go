package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scopeguard/pricing-cli/internal/resilience"
	"github.com/scopeguard/pricing-cli/pkg/anthropic"
	"github.com/scopeguard/pricing-cli/pkg/perplexity"
)

// Config tunes the router.
type Config struct {
	// DefaultModel handles classification, pricing, and verification.
	DefaultModel string
	// LightModel handles cheap structured calls such as clarification.
	LightModel string

	// RequestTimeout bounds each stage call end to end, including retries.
	RequestTimeout time.Duration

	// RequestsPerSecond and Burst feed the shared rate limiter.
	RequestsPerSecond float64
	Burst             int

	Retry   resilience.RetryConfig
	Circuit resilience.CircuitBreakerConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultModel:      "claude-sonnet-4-5-20250929",
		LightModel:        "claude-haiku-4-5-20251001",
		RequestTimeout:    90 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
		Retry:             resilience.DefaultRetryConfig(),
		Circuit:           resilience.DefaultCircuitBreakerConfig(),
	}
}

// UsageSummary accumulates token and query counts across a run.
type UsageSummary struct {
	Anthropic                  anthropic.TokenUsage
	PerplexityQueries          int
	PerplexityPromptTokens     int
	PerplexityCompletionTokens int
	ResearchFallbacks          int
}

// Router implements Client over an Anthropic message backend and an optional
// Perplexity research backend.
type Router struct {
	anthropic  anthropic.Client
	perplexity perplexity.Client
	cfg        Config
	limiter    *rate.Limiter
	breakers   *resilience.ServiceBreakers

	mu    sync.Mutex
	usage UsageSummary
}

// NewRouter creates a Router. The perplexity client may be nil, in which case
// research requests degrade to plain completions immediately.
func NewRouter(ac anthropic.Client, pc perplexity.Client, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.LightModel == "" {
		cfg.LightModel = def.LightModel
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	return &Router{
		anthropic:  ac,
		perplexity: pc,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breakers:   resilience.NewServiceBreakers(cfg.Circuit),
	}
}

// Complete routes the request to a backend. Research requests try the
// research backend first and silently retry as a plain completion when it
// fails; the degradation is logged, never surfaced.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "completion: rate limiter")
	}

	if req.Research && r.perplexity != nil {
		text, err := r.research(ctx, req)
		if err == nil {
			return text, nil
		}
		zap.L().Warn("research backend unavailable, retrying without research",
			zap.String("stage", req.Stage),
			zap.Error(err),
		)
		r.mu.Lock()
		r.usage.ResearchFallbacks++
		r.mu.Unlock()
	}

	return r.message(ctx, req)
}

// TotalUsage returns a snapshot of accumulated usage.
func (r *Router) TotalUsage() UsageSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// BreakerStates reports each backend's circuit state, for health endpoints.
func (r *Router) BreakerStates() map[string]resilience.CircuitState {
	return r.breakers.States()
}

func (r *Router) research(ctx context.Context, req Request) (string, error) {
	breaker := r.breakers.Get("perplexity")

	retryCfg := r.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("perplexity", req.Stage)
	retryCfg.ShouldRetry = func(err error) bool {
		var statusErr *perplexity.StatusError
		if errors.As(err, &statusErr) {
			return resilience.IsTransientHTTPStatus(statusErr.StatusCode)
		}
		return resilience.IsTransient(err)
	}

	maxTokens := int(req.MaxTokens)
	var messages []perplexity.Message
	if req.System != "" {
		messages = append(messages, perplexity.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, perplexity.Message{Role: "user", Content: req.Prompt})

	pReq := perplexity.ChatCompletionRequest{
		Messages:    messages,
		MaxTokens:   &maxTokens,
		Temperature: req.Temperature,
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			return r.perplexity.ChatCompletion(ctx, pReq)
		})
	})
	if err != nil {
		return "", classifyResearchError(err)
	}

	r.mu.Lock()
	r.usage.PerplexityQueries++
	r.usage.PerplexityPromptTokens += resp.Usage.PromptTokens
	r.usage.PerplexityCompletionTokens += resp.Usage.CompletionTokens
	r.mu.Unlock()

	text := resp.FirstContent()
	if text == "" {
		return "", &TransportError{Err: eris.New("empty research response")}
	}
	return text, nil
}

func (r *Router) message(ctx context.Context, req Request) (string, error) {
	model := r.cfg.DefaultModel
	if req.Light {
		model = r.cfg.LightModel
	}

	breaker := r.breakers.Get("anthropic")

	retryCfg := r.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", req.Stage)
	retryCfg.ShouldRetry = func(err error) bool {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
		}
		return resilience.IsTransient(err)
	}

	msgReq := anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	}
	if req.System != "" {
		if req.CacheSystem {
			msgReq.System = anthropic.BuildCachedSystemBlocks(req.System)
		} else {
			msgReq.System = []anthropic.SystemBlock{{Text: req.System}}
		}
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return r.anthropic.CreateMessage(ctx, msgReq)
		})
	})
	if err != nil {
		return "", classifyMessageError(err)
	}

	resp.Usage.LogCost(model, req.Stage)
	r.mu.Lock()
	r.usage.Anthropic.Add(resp.Usage)
	r.mu.Unlock()

	text := resp.FirstText()
	if text == "" {
		return "", &TransportError{Err: eris.New("empty completion response")}
	}
	return text, nil
}

func classifyResearchError(err error) error {
	var statusErr *perplexity.StatusError
	if errors.As(err, &statusErr) {
		if resilience.IsQuotaHTTPStatus(statusErr.StatusCode) {
			return &QuotaError{Err: err, StatusCode: statusErr.StatusCode}
		}
		return &TransportError{Err: err, StatusCode: statusErr.StatusCode}
	}
	return &TransportError{Err: err}
}

func classifyMessageError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.IsQuotaHTTPStatus(apiErr.StatusCode) {
			return &QuotaError{Err: err, StatusCode: apiErr.StatusCode}
		}
		return &TransportError{Err: err, StatusCode: apiErr.StatusCode}
	}
	return &TransportError{Err: err}
}
