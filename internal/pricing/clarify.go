package pricing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scopeguard/pricing-cli/internal/completion"
	"github.com/scopeguard/pricing-cli/internal/extract"
	"github.com/scopeguard/pricing-cli/internal/model"
)

type clarifyResponse struct {
	Questions []model.ClarificationQuestion `json:"questions"`
}

// GenerateQuestions produces clarification questions for the request. It
// never fails: any backend or parse error yields the generic fallback
// questions instead. sysCtx is the shared rendered pricing context.
func (e *Engine) GenerateQuestions(ctx context.Context, sysCtx string, pctx model.PricingContext) []model.ClarificationQuestion {
	text, err := e.client.Complete(ctx, completion.Request{
		Stage:       "clarify",
		System:      sysCtx,
		CacheSystem: true,
		Prompt:      fmt.Sprintf(clarifySystemPrompt, e.policy.Questions.Max) + "\n\n" + clarifyPrompt(pctx),
		MaxTokens:   stageMaxTokens,
		Light:       true,
	})
	if err != nil {
		zap.L().Warn("clarification generation failed, using fallback questions", zap.Error(err))
		return FallbackQuestions()
	}

	parsed, err := extract.Object[clarifyResponse](text)
	if err != nil {
		zap.L().Warn("clarification response unparseable, using fallback questions", zap.Error(err))
		return FallbackQuestions()
	}
	if len(parsed.Questions) == 0 {
		return FallbackQuestions()
	}

	questions := parsed.Questions
	if limit := e.policy.Questions.Max; len(questions) > limit {
		questions = questions[:limit]
	}
	backfillQuestions(questions)
	return questions
}

// backfillQuestions fills the fields the model routinely drops so the intake
// form can always render.
func backfillQuestions(questions []model.ClarificationQuestion) {
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
		if questions[i].Priority == 0 {
			questions[i].Priority = 1
		}
		if questions[i].Category == "" {
			questions[i].Category = "other"
		}
		if questions[i].Type == "" {
			questions[i].Type = "text"
		}
	}
}

// FallbackQuestions is the generic question set used when generation fails.
func FallbackQuestions() []model.ClarificationQuestion {
	return []model.ClarificationQuestion{
		{
			ID:       "q1",
			Question: "Can you describe in more detail what you need?",
			Type:     "text",
			Priority: 1,
			Category: "scope",
		},
		{
			ID:       "q2",
			Question: "What is your timeline for this request?",
			Type:     "select",
			Options:  []string{"ASAP / Urgent", "This week", "This month", "Flexible / No rush"},
			Priority: 1,
			Category: "timeline",
		},
		{
			ID:       "q3",
			Question: "Is there anything else important about this request?",
			Type:     "text",
			Priority: 2,
			Category: "other",
		},
	}
}
