package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/cost"
	"github.com/scopeguard/pricing-cli/internal/policy"
	"github.com/scopeguard/pricing-cli/internal/pricing"
	"github.com/scopeguard/pricing-cli/internal/resilience"
	"github.com/scopeguard/pricing-cli/internal/store"
	"github.com/scopeguard/pricing-cli/pkg/anthropic"
	"github.com/scopeguard/pricing-cli/pkg/perplexity"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pricing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildEngine wires the completion router and the pricing engine from config.
// The router is returned alongside the engine so commands can report usage
// after a run.
func buildEngine() (*pricing.Engine, *completion.Router, error) {
	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)

	// No Perplexity key means research degrades to plain completions.
	var perplexityClient perplexity.Client
	if cfg.Perplexity.Key != "" {
		perplexityClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Warn("perplexity key not set, market research will run without web search")
	}

	rcfg := completion.DefaultConfig()
	rcfg.DefaultModel = cfg.Anthropic.SonnetModel
	rcfg.LightModel = cfg.Anthropic.HaikuModel
	if cfg.Completion.RequestTimeoutSecs > 0 {
		rcfg.RequestTimeout = time.Duration(cfg.Completion.RequestTimeoutSecs) * time.Second
	}
	rcfg.RequestsPerSecond = cfg.Completion.RequestsPerSecond
	rcfg.Burst = cfg.Completion.Burst
	rcfg.Retry = resilience.RetryFromConfig(cfg.Completion.MaxAttempts, cfg.Completion.RetryBackoffMs)
	rcfg.Circuit = resilience.CircuitFromConfig(cfg.Completion.BreakerFailures, cfg.Completion.BreakerResetSecs)

	router := completion.NewRouter(anthropicClient, perplexityClient, rcfg)

	pol, err := loadPolicy()
	if err != nil {
		return nil, nil, err
	}

	return pricing.NewEngine(router, pol), router, nil
}

func loadPolicy() (*policy.Policy, error) {
	if cfg.Policy.Path == "" {
		return policy.Default(), nil
	}
	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load pricing policy")
	}
	return pol, nil
}

// costRates overlays configured rates onto the compiled-in defaults.
func costRates() cost.Rates {
	r := cost.DefaultRates()
	for m, mr := range cfg.Rates.Anthropic {
		r.Anthropic[m] = cost.ModelRate{
			Input:         mr.Input,
			Output:        mr.Output,
			CacheWriteMul: mr.CacheWriteMul,
			CacheReadMul:  mr.CacheReadMul,
		}
	}
	if cfg.Rates.Perplexity.PerQuery > 0 {
		r.Perplexity.PerQuery = cfg.Rates.Perplexity.PerQuery
	}
	return r
}

// logRunUsage summarizes the tokens and queries a run consumed. The Claude
// cost is computed at the default model's rate; the cheaper clarification
// calls make this a slight overestimate, which is fine for an estimate.
func logRunUsage(router *completion.Router) {
	usage := router.TotalUsage()
	calc := cost.NewCalculator(costRates())

	claudeCost := calc.Claude(cfg.Anthropic.SonnetModel,
		int(usage.Anthropic.InputTokens),
		int(usage.Anthropic.OutputTokens),
		int(usage.Anthropic.CacheCreationInputTokens),
		int(usage.Anthropic.CacheReadInputTokens),
	)
	totalCost := claudeCost + float64(usage.PerplexityQueries)*calc.PerplexityQuery()

	zap.L().Info("run usage",
		zap.Int64("input_tokens", usage.Anthropic.InputTokens),
		zap.Int64("output_tokens", usage.Anthropic.OutputTokens),
		zap.Int64("cache_read_tokens", usage.Anthropic.CacheReadInputTokens),
		zap.Int("perplexity_queries", usage.PerplexityQueries),
		zap.Int("research_fallbacks", usage.ResearchFallbacks),
		zap.Float64("est_cost_usd", totalCost),
	)
}
