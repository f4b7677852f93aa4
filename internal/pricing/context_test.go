package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scopeguard/pricing-cli/internal/model"
)

func TestBuildContext_Defaults(t *testing.T) {
	t.Parallel()

	pctx := BuildContext(model.FreelancerProfile{}, model.ProjectRules{}, nil, model.RequestContext{
		Description: "Repaint the fence",
	})

	assert.Equal(t, 0.2, pctx.Freelancer.Overhead)
	assert.Equal(t, 0.15, pctx.Freelancer.ProfitMargin)
	assert.Equal(t, "mid-market", pctx.Freelancer.Positioning)
	assert.Equal(t, "USD", pctx.Project.Currency)
}

func TestBuildContext_ExplicitValuesKept(t *testing.T) {
	t.Parallel()

	pctx := BuildContext(
		model.FreelancerProfile{Overhead: 0.3, ProfitMargin: 0.25, Positioning: "premium"},
		model.ProjectRules{Currency: "EUR"},
		nil,
		model.RequestContext{Description: "x"},
	)

	assert.Equal(t, 0.3, pctx.Freelancer.Overhead)
	assert.Equal(t, 0.25, pctx.Freelancer.ProfitMargin)
	assert.Equal(t, "premium", pctx.Freelancer.Positioning)
	assert.Equal(t, "EUR", pctx.Project.Currency)
}

func TestEffectiveHourlyRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		freelancerRate float64
		projectRate    float64
		want           float64
	}{
		{"project rate wins", 100, 150, 150},
		{"freelancer rate as fallback", 100, 0, 100},
		{"no rate at all", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pctx := BuildContext(
				model.FreelancerProfile{HourlyRate: tt.freelancerRate},
				model.ProjectRules{HourlyRate: tt.projectRate},
				nil,
				model.RequestContext{},
			)
			got := EffectiveHourlyRate(pctx, model.ProjectRules{HourlyRate: tt.projectRate})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatContext_Sections(t *testing.T) {
	t.Parallel()

	rules := model.ProjectRules{
		HourlyRate:            125,
		Currency:              "USD",
		OriginalContractPrice: 12000,
		Deliverables:          []string{"Marketing site"},
		RevisionsIncluded:     3,
		RevisionsUsed:         1,
		CustomRules: []model.CustomRule{
			{Rule: "Rush jobs +25%", Description: "Anything due within 48h"},
		},
	}
	pctx := BuildContext(
		model.FreelancerProfile{Location: "Austin, TX", Specializations: []string{"web"}},
		rules,
		[]string{"Client prefers weekly demos"},
		model.RequestContext{Description: "Add a blog"},
	)

	text := FormatContext(pctx, rules)

	assert.Contains(t, text, "## Freelancer Profile")
	assert.Contains(t, text, "## Project Context")
	assert.Contains(t, text, "## Project Rules")
	assert.Contains(t, text, "## Additional Context")
	assert.Contains(t, text, "Austin, TX")
	assert.Contains(t, text, "12,000.00")
	assert.Contains(t, text, "Rush jobs +25%: Anything due within 48h")
	assert.Contains(t, text, "Revisions: 1 of 3 used")
	assert.Contains(t, text, "Client prefers weekly demos")
}

func TestFormatContext_Deterministic(t *testing.T) {
	t.Parallel()

	rules := model.ProjectRules{HourlyRate: 90, Currency: "USD"}
	pctx := BuildContext(
		model.FreelancerProfile{Location: "Denver"},
		rules,
		nil,
		model.RequestContext{
			Description: "Add export",
			ClarificationAnswers: map[string]string{
				"What format?":  "CSV",
				"Which tables?": "All of them",
				"By when?":      "Friday",
			},
		},
	)

	first := FormatContext(pctx, rules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FormatContext(pctx, rules))
	}
}

func TestFormatRequest_AnswersSortedAndBulleted(t *testing.T) {
	t.Parallel()

	text := formatRequest(model.RequestContext{
		Description: "Add export",
		ClarificationAnswers: map[string]string{
			"Which tables?": "All",
			"What format?":  "CSV",
		},
	})

	assert.Contains(t, text, "## Change Request")
	assert.Contains(t, text, "## Client Clarifications")
	// Keys render in sorted order.
	idx1 := strings.Index(text, "What format?")
	idx2 := strings.Index(text, "Which tables?")
	assert.Greater(t, idx2, idx1)
}

func TestFormatMoney(t *testing.T) {
	t.Parallel()

	usd := FormatMoney("USD", 1500)
	assert.Contains(t, usd, "$")
	assert.Contains(t, usd, "1,500.00")
	assert.Contains(t, FormatMoney("EUR", 250), "250")
	// Unknown codes fall back to USD.
	assert.Contains(t, FormatMoney("not-a-code", 10), "$")
}
