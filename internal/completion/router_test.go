package completion

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scopeguard/pricing-cli/pkg/anthropic"
	"github.com/scopeguard/pricing-cli/pkg/perplexity"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockPerplexity struct {
	mock.Mock
}

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func researchResponse(content string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		ID:      "cmpl_1",
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: content}}},
		Usage:   perplexity.Usage{PromptTokens: 40, CompletionTokens: 20},
	}
}

func TestComplete_PlainCompletion(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.Messages[0].Content == "Classify this."
	})).Return(textResponse(`{"verdict":"IN_SCOPE"}`), nil)

	router := NewRouter(ma, nil, Config{})

	text, err := router.Complete(context.Background(), Request{
		Stage:     "scope",
		Prompt:    "Classify this.",
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"IN_SCOPE"}`, text)

	usage := router.TotalUsage()
	assert.Equal(t, int64(100), usage.Anthropic.InputTokens)
	assert.Equal(t, int64(50), usage.Anthropic.OutputTokens)

	ma.AssertExpectations(t)
}

func TestComplete_LightSelectsLightModel(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001"
	})).Return(textResponse("ok"), nil)

	router := NewRouter(ma, nil, Config{})

	_, err := router.Complete(context.Background(), Request{
		Stage:     "clarify",
		Prompt:    "Questions?",
		MaxTokens: 512,
		Light:     true,
	})
	require.NoError(t, err)
	ma.AssertExpectations(t)
}

func TestComplete_CachedSystemBlocks(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 &&
			req.System[0].Text == "shared context" &&
			req.System[0].CacheControl != nil
	})).Return(textResponse("ok"), nil)

	router := NewRouter(ma, nil, Config{})

	_, err := router.Complete(context.Background(), Request{
		Stage:       "pricing",
		System:      "shared context",
		CacheSystem: true,
		Prompt:      "Price it.",
		MaxTokens:   2048,
	})
	require.NoError(t, err)
	ma.AssertExpectations(t)
}

func TestComplete_ResearchUsesPerplexity(t *testing.T) {
	ma := new(mockAnthropic)
	mp := new(mockPerplexity)
	mp.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == "system" &&
			req.Messages[1].Content == "Market rates for kitchen remodels?"
	})).Return(researchResponse("Market data here."), nil)

	router := NewRouter(ma, mp, Config{})

	text, err := router.Complete(context.Background(), Request{
		Stage:     "market",
		System:    "You research markets.",
		Prompt:    "Market rates for kitchen remodels?",
		MaxTokens: 2048,
		Research:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Market data here.", text)

	usage := router.TotalUsage()
	assert.Equal(t, 1, usage.PerplexityQueries)
	assert.Equal(t, 40, usage.PerplexityPromptTokens)
	assert.Equal(t, 0, usage.ResearchFallbacks)

	// The message backend was never touched.
	ma.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	mp.AssertExpectations(t)
}

func TestComplete_ResearchFallsBackToCompletion(t *testing.T) {
	ma := new(mockAnthropic)
	mp := new(mockPerplexity)

	mp.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &perplexity.StatusError{StatusCode: http.StatusPaymentRequired, Body: "out of credits"})
	ma.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("General estimate without live data."), nil)

	router := NewRouter(ma, mp, Config{})

	text, err := router.Complete(context.Background(), Request{
		Stage:     "market",
		Prompt:    "Market rates?",
		MaxTokens: 2048,
		Research:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "General estimate without live data.", text)

	usage := router.TotalUsage()
	assert.Equal(t, 1, usage.ResearchFallbacks)

	ma.AssertExpectations(t)
	mp.AssertExpectations(t)
}

func TestComplete_ResearchWithNilPerplexity(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("no research available"), nil)

	router := NewRouter(ma, nil, Config{})

	text, err := router.Complete(context.Background(), Request{
		Stage:     "market",
		Prompt:    "Market rates?",
		MaxTokens: 1024,
		Research:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "no research available", text)
	ma.AssertExpectations(t)
}

func TestComplete_TransportErrorSurfaced(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("connection refused by nothing in particular"))

	router := NewRouter(ma, nil, Config{})

	_, err := router.Complete(context.Background(), Request{
		Stage:     "scope",
		Prompt:    "Classify.",
		MaxTokens: 1024,
	})
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestComplete_EmptyResponseIsTransportError(t *testing.T) {
	ma := new(mockAnthropic)
	ma.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{ID: "msg_empty"}, nil)

	router := NewRouter(ma, nil, Config{})

	_, err := router.Complete(context.Background(), Request{
		Stage:     "verify",
		Prompt:    "Check.",
		MaxTokens: 512,
	})
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestClassifyResearchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantQuota bool
		wantCode  int
	}{
		{
			name:      "quota status",
			err:       &perplexity.StatusError{StatusCode: 402, Body: "payment required"},
			wantQuota: true,
			wantCode:  402,
		},
		{
			name:      "rate limit status",
			err:       &perplexity.StatusError{StatusCode: 429, Body: "slow down"},
			wantQuota: true,
			wantCode:  429,
		},
		{
			name:     "server error status",
			err:      &perplexity.StatusError{StatusCode: 503, Body: "unavailable"},
			wantCode: 503,
		},
		{
			name: "plain network error",
			err:  eris.New("dial tcp: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			classified := classifyResearchError(tt.err)

			var quotaErr *QuotaError
			var transportErr *TransportError
			if tt.wantQuota {
				require.True(t, errors.As(classified, &quotaErr))
				assert.Equal(t, tt.wantCode, quotaErr.StatusCode)
			} else {
				require.True(t, errors.As(classified, &transportErr))
				assert.Equal(t, tt.wantCode, transportErr.StatusCode)
			}
		})
	}
}

func TestNewRouter_DefaultsApplied(t *testing.T) {
	t.Parallel()

	router := NewRouter(new(mockAnthropic), nil, Config{})
	assert.Equal(t, "claude-sonnet-4-5-20250929", router.cfg.DefaultModel)
	assert.Equal(t, "claude-haiku-4-5-20251001", router.cfg.LightModel)
	assert.NotZero(t, router.cfg.RequestTimeout)
	assert.NotNil(t, router.limiter)
	assert.NotNil(t, router.breakers)
}
