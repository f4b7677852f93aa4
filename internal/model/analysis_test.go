package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeAnalysisNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		in               ScopeAnalysis
		wantOutOfScope   bool
		wantSeverity     string
		wantEffortMult   float64
	}{
		{
			name:           "verdict wins over contradicting boolean",
			in:             ScopeAnalysis{Verdict: VerdictOutOfScope, IsOutOfScope: false, OverallSeverity: "major", EffortMultiplier: 1.5},
			wantOutOfScope: true,
			wantSeverity:   "major",
			wantEffortMult: 1.5,
		},
		{
			name:           "in scope clears stale boolean",
			in:             ScopeAnalysis{Verdict: VerdictInScope, IsOutOfScope: true, OverallSeverity: "minor", EffortMultiplier: 1.0},
			wantOutOfScope: false,
			wantSeverity:   "minor",
			wantEffortMult: 1.0,
		},
		{
			name:           "unknown severity defaults to moderate",
			in:             ScopeAnalysis{Verdict: VerdictBoundaryCase, OverallSeverity: "catastrophic", EffortMultiplier: 1.2},
			wantOutOfScope: false,
			wantSeverity:   "moderate",
			wantEffortMult: 1.2,
		},
		{
			name:           "effort multiplier clamped to range",
			in:             ScopeAnalysis{Verdict: VerdictInScope, OverallSeverity: "moderate", EffortMultiplier: 7.5},
			wantOutOfScope: false,
			wantSeverity:   "moderate",
			wantEffortMult: 3.0,
		},
		{
			name:           "zero effort multiplier raised to floor",
			in:             ScopeAnalysis{Verdict: VerdictClarificationOnly, OverallSeverity: "minor"},
			wantOutOfScope: false,
			wantSeverity:   "minor",
			wantEffortMult: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := tt.in
			s.Normalize()
			assert.Equal(t, tt.wantOutOfScope, s.IsOutOfScope)
			assert.Equal(t, tt.wantSeverity, s.OverallSeverity)
			assert.InDelta(t, tt.wantEffortMult, s.EffortMultiplier, 0.001)
		})
	}
}

func TestComplexityForSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity string
		want     string
	}{
		{"major", "complex"},
		{"significant", "complex"},
		{"moderate", "moderate"},
		{"minor", "simple"},
		{"", "simple"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ComplexityForSeverity(tt.severity), "severity %q", tt.severity)
	}
}

func TestMarketResearchAnchorBand(t *testing.T) {
	t.Parallel()

	standalone := &PriceBand{Min: 800, Max: 1200}
	addOn := &PriceBand{Min: 500, Max: 750}

	t.Run("add-on selects discounted band", func(t *testing.T) {
		t.Parallel()
		m := &MarketResearchResult{
			MarketPriceRange: MarketPriceRange{Standalone: standalone, AsAddOn: addOn},
			IsLikelyAddOn:    true,
		}
		assert.Equal(t, addOn, m.AnchorBand())
	})

	t.Run("standalone when not add-on", func(t *testing.T) {
		t.Parallel()
		m := &MarketResearchResult{
			MarketPriceRange: MarketPriceRange{Standalone: standalone, AsAddOn: addOn},
			IsLikelyAddOn:    false,
		}
		assert.Equal(t, standalone, m.AnchorBand())
	})

	t.Run("add-on falls back to standalone when band missing", func(t *testing.T) {
		t.Parallel()
		m := &MarketResearchResult{
			MarketPriceRange: MarketPriceRange{Standalone: standalone},
			IsLikelyAddOn:    true,
		}
		assert.Equal(t, standalone, m.AnchorBand())
	})

	t.Run("nil result yields no band", func(t *testing.T) {
		t.Parallel()
		var m *MarketResearchResult
		assert.Nil(t, m.AnchorBand())
	})
}
