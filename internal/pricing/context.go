package pricing

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// Profile and project defaults applied when the freelancer record is sparse.
const (
	defaultOverhead     = 0.2
	defaultProfitMargin = 0.15
	defaultCurrency     = "USD"
	defaultPositioning  = "mid-market"
)

// BuildContext assembles the immutable pricing context for one run. Missing
// profile fields get conservative defaults so every stage sees a complete
// picture. The result is a value snapshot; stages never mutate it.
func BuildContext(freelancer model.FreelancerProfile, rules model.ProjectRules, notes []string, req model.RequestContext) model.PricingContext {
	if freelancer.Overhead <= 0 {
		freelancer.Overhead = defaultOverhead
	}
	if freelancer.ProfitMargin <= 0 {
		freelancer.ProfitMargin = defaultProfitMargin
	}
	if freelancer.Positioning == "" {
		freelancer.Positioning = defaultPositioning
	}

	project := model.ProjectContext{
		OriginalContractPrice: rules.OriginalContractPrice,
		ProjectType:           rules.ProjectType,
		ClientLocation:        rules.ClientLocation,
		ProjectTimeline:       rules.ProjectTimeline,
		Deliverables:          rules.Deliverables,
		Currency:              rules.Currency,
	}
	if project.Currency == "" {
		project.Currency = defaultCurrency
	}

	return model.PricingContext{
		Freelancer:   freelancer,
		Project:      project,
		Request:      req,
		ContextNotes: notes,
	}
}

// EffectiveHourlyRate returns the rate pricing should use: the contracted
// project rate when set, else the freelancer's base rate, else zero.
func EffectiveHourlyRate(pctx model.PricingContext, rules model.ProjectRules) float64 {
	if rules.HourlyRate > 0 {
		return rules.HourlyRate
	}
	return pctx.Freelancer.HourlyRate
}

// FormatContext renders a pricing context as the prompt section shared by
// every stage. The same context always renders to the same text, which is
// what makes system-prompt caching across stages effective.
func FormatContext(pctx model.PricingContext, rules model.ProjectRules) string {
	var b strings.Builder

	b.WriteString("## Freelancer Profile\n")
	if pctx.Freelancer.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", pctx.Freelancer.Location)
	}
	if len(pctx.Freelancer.Specializations) > 0 {
		fmt.Fprintf(&b, "- Specializations: %s\n", strings.Join(pctx.Freelancer.Specializations, ", "))
	}
	if rate := EffectiveHourlyRate(pctx, rules); rate > 0 {
		fmt.Fprintf(&b, "- Hourly rate: %s\n", FormatMoney(pctx.Project.Currency, rate))
	}
	fmt.Fprintf(&b, "- Market positioning: %s\n", pctx.Freelancer.Positioning)
	if pctx.Freelancer.Industry != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", pctx.Freelancer.Industry)
	}
	fmt.Fprintf(&b, "- Overhead: %.0f%%\n", pctx.Freelancer.Overhead*100)
	fmt.Fprintf(&b, "- Profit margin: %.0f%%\n", pctx.Freelancer.ProfitMargin*100)

	b.WriteString("\n## Project Context\n")
	if pctx.Project.ProjectType != "" {
		fmt.Fprintf(&b, "- Project type: %s\n", pctx.Project.ProjectType)
	}
	if pctx.Project.OriginalContractPrice > 0 {
		fmt.Fprintf(&b, "- Original contract price: %s\n", FormatMoney(pctx.Project.Currency, pctx.Project.OriginalContractPrice))
	}
	if pctx.Project.ClientLocation != "" {
		fmt.Fprintf(&b, "- Client location: %s\n", pctx.Project.ClientLocation)
	}
	if pctx.Project.ProjectTimeline != "" {
		fmt.Fprintf(&b, "- Timeline: %s\n", pctx.Project.ProjectTimeline)
	}
	if len(pctx.Project.Deliverables) > 0 {
		b.WriteString("- Contracted deliverables:\n")
		for _, d := range pctx.Project.Deliverables {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	fmt.Fprintf(&b, "- Currency: %s\n", pctx.Project.Currency)

	b.WriteString("\n## Project Rules\n")
	if rules.RevisionsIncluded > 0 {
		fmt.Fprintf(&b, "- Revisions: %d of %d used\n", rules.RevisionsUsed, rules.RevisionsIncluded)
	}
	if rules.RulesSummary != "" {
		fmt.Fprintf(&b, "- Summary: %s\n", rules.RulesSummary)
	}
	for _, rule := range rules.CustomRules {
		if rule.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", rule.Rule, rule.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", rule.Rule)
		}
	}
	if rules.ContractText != "" {
		fmt.Fprintf(&b, "\n### Contract Excerpt\n%s\n", rules.ContractText)
	}

	if len(pctx.ContextNotes) > 0 {
		b.WriteString("\n## Additional Context\n")
		for _, note := range pctx.ContextNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	return b.String()
}

// FormatMoney renders an amount in the given ISO currency, falling back to
// USD for unknown codes.
func FormatMoney(code string, amount float64) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.NarrowSymbol(unit.Amount(amount)))
}

// formatRequest renders the request section appended to stage prompts.
func formatRequest(req model.RequestContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Change Request\n%s\n", req.Description)
	if req.Urgency != "" {
		fmt.Fprintf(&b, "\nUrgency: %s\n", req.Urgency)
	}
	if len(req.ClarificationAnswers) > 0 {
		b.WriteString("\n## Client Clarifications\n")
		for _, q := range sortedKeys(req.ClarificationAnswers) {
			fmt.Fprintf(&b, "- %s %s\n", q, req.ClarificationAnswers[q])
		}
	}
	return b.String()
}

// sortedKeys keeps prompt text deterministic so the cached prefix stays stable.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
