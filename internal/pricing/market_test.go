package pricing

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/model"
)

func TestResearchMarket_ParsesBands(t *testing.T) {
	mc := new(mockCompletion)
	mc.On("Complete", mock.Anything, mock.MatchedBy(func(req completion.Request) bool {
		return req.Stage == "market" && req.Research
	})).Return(`{
		"marketPriceRange": {
			"standalone": {"min": 2000, "max": 3500},
			"asAddOn": {"min": 500, "max": 750}
		},
		"isLikelyAddOn": true,
		"marketInsights": ["Password reset is commodity work inside an existing codebase."],
		"confidence": "medium"
	}`, nil)

	e := NewEngine(mc, nil)
	market, err := e.ResearchMarket(context.Background(), "ctx", testContext())
	require.NoError(t, err)

	assert.True(t, market.IsLikelyAddOn)
	require.NotNil(t, market.MarketPriceRange.AsAddOn)
	assert.Equal(t, 500.0, market.MarketPriceRange.AsAddOn.Min)
	assert.Equal(t, 750.0, market.MarketPriceRange.AsAddOn.Max)

	// The applicable band is the add-on band.
	band := market.AnchorBand()
	require.NotNil(t, band)
	assert.Equal(t, model.PriceBand{Min: 500, Max: 750}, *band)
}

func TestResearchMarket_BadConfidenceBecomesLow(t *testing.T) {
	mc := new(mockCompletion)
	mc.onStage("market", `{"marketPriceRange": {"standalone": {"min": 100, "max": 200}}, "confidence": "very sure"}`, nil)

	e := NewEngine(mc, nil)
	market, err := e.ResearchMarket(context.Background(), "ctx", testContext())
	require.NoError(t, err)
	assert.Equal(t, "low", market.Confidence)
}

func TestResearchMarket_ErrorsPropagate(t *testing.T) {
	mc := new(mockCompletion)
	mc.onStage("market", "", eris.New("both backends down"))

	e := NewEngine(mc, nil)
	_, err := e.ResearchMarket(context.Background(), "ctx", testContext())
	require.Error(t, err)
}

func TestDefaultMarketResearch(t *testing.T) {
	t.Parallel()

	market := DefaultMarketResearch()
	assert.True(t, market.Degraded)
	assert.Equal(t, "low", market.Confidence)
	assert.Nil(t, market.AnchorBand())
	require.Len(t, market.MarketInsights, 1)
}
