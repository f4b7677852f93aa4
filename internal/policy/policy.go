// Package policy holds the tunable pricing rules that are deliberate business
// decisions rather than model output: fallback formula constants, the
// verification tolerance, and the profit-leak keyword taxonomy. Defaults are
// compiled in; a YAML file can override any of them.
package policy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy is the top-level pricing policy.
type Policy struct {
	Fallback     FallbackConfig `yaml:"fallback"`
	Verification VerifyConfig   `yaml:"verification"`
	Questions    QuestionConfig `yaml:"questions"`
	ProfitLeaks  []LeakCategory `yaml:"profit_leaks"`
}

// FallbackConfig parameterizes the fixed-formula price used when the pipeline
// cannot produce a model-grounded estimate.
type FallbackConfig struct {
	Hours           float64 `yaml:"hours"`
	Multiplier      float64 `yaml:"multiplier"` // overhead + margin rollup
	RangeLowFactor  float64 `yaml:"range_low_factor"`
	RangeHighFactor float64 `yaml:"range_high_factor"`
	Confidence      float64 `yaml:"confidence"`
	DefaultRate     float64 `yaml:"default_rate"` // used when no hourly rate is known at all
}

// VerifyConfig bounds what the verification stage may change.
type VerifyConfig struct {
	// MarketTolerance is the fraction by which a recommended price may sit
	// outside the market band before it is flagged.
	MarketTolerance float64 `yaml:"market_tolerance"`
	// MaxAdjustmentFraction caps |adjustmentNeeded| relative to the
	// recommended price; larger corrections are discarded as re-pricing
	// attempts rather than arithmetic fixes.
	MaxAdjustmentFraction float64 `yaml:"max_adjustment_fraction"`
}

// QuestionConfig bounds the clarification stage.
type QuestionConfig struct {
	Max int `yaml:"max"`
}

// LeakCategory names a hidden-cost category, the request keywords that
// suggest it, and the buffer added when it is plausible.
type LeakCategory struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	BufferPct float64  `yaml:"buffer_pct"`
}

// Default returns the compiled-in policy.
func Default() *Policy {
	return &Policy{
		Fallback: FallbackConfig{
			Hours:           4,
			Multiplier:      1.35,
			RangeLowFactor:  0.85,
			RangeHighFactor: 1.25,
			Confidence:      0.5,
			DefaultRate:     100,
		},
		Verification: VerifyConfig{
			MarketTolerance:       0.20,
			MaxAdjustmentFraction: 0.10,
		},
		Questions: QuestionConfig{Max: 4},
		ProfitLeaks: []LeakCategory{
			{Name: "travel", Keywords: []string{"travel", "on-site", "onsite", "on site", "visit", "commute"}, BufferPct: 0.10},
			{Name: "disposal", Keywords: []string{"disposal", "haul", "remove", "removal", "junk", "debris"}, BufferPct: 0.08},
			{Name: "permits", Keywords: []string{"permit", "license", "inspection", "code compliance", "approval from"}, BufferPct: 0.12},
			{Name: "rework", Keywords: []string{"redo", "rework", "fix the previous", "again", "revision beyond"}, BufferPct: 0.10},
			{Name: "coordination", Keywords: []string{"coordinate", "third party", "third-party", "vendor", "another contractor", "their team"}, BufferPct: 0.08},
			{Name: "admin", Keywords: []string{"documentation", "report", "meeting", "training", "handover", "handoff"}, BufferPct: 0.05},
		},
	}
}

// Load reads a policy from a YAML file, filling unset values from Default.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	// The YAML has a top-level "pricing" key.
	var wrapper struct {
		Pricing Policy `yaml:"pricing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "policy: parse")
	}

	p := &wrapper.Pricing
	p.applyDefaults()
	return p, nil
}

func (p *Policy) applyDefaults() {
	def := Default()
	if p.Fallback.Hours <= 0 {
		p.Fallback.Hours = def.Fallback.Hours
	}
	if p.Fallback.Multiplier <= 0 {
		p.Fallback.Multiplier = def.Fallback.Multiplier
	}
	if p.Fallback.RangeLowFactor <= 0 {
		p.Fallback.RangeLowFactor = def.Fallback.RangeLowFactor
	}
	if p.Fallback.RangeHighFactor <= 0 {
		p.Fallback.RangeHighFactor = def.Fallback.RangeHighFactor
	}
	if p.Fallback.Confidence <= 0 {
		p.Fallback.Confidence = def.Fallback.Confidence
	}
	if p.Fallback.DefaultRate <= 0 {
		p.Fallback.DefaultRate = def.Fallback.DefaultRate
	}
	if p.Verification.MarketTolerance <= 0 {
		p.Verification.MarketTolerance = def.Verification.MarketTolerance
	}
	if p.Verification.MaxAdjustmentFraction <= 0 {
		p.Verification.MaxAdjustmentFraction = def.Verification.MaxAdjustmentFraction
	}
	if p.Questions.Max <= 0 {
		p.Questions.Max = def.Questions.Max
	}
	if len(p.ProfitLeaks) == 0 {
		p.ProfitLeaks = def.ProfitLeaks
	}
}

// DetectLeaks scans request text for hidden-cost categories. It returns the
// matched category names and the combined buffer fraction.
func (p *Policy) DetectLeaks(text string) (identified []string, bufferPct float64) {
	lower := strings.ToLower(text)
	for _, cat := range p.ProfitLeaks {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				identified = append(identified, cat.Name)
				bufferPct += cat.BufferPct
				break
			}
		}
	}
	return identified, bufferPct
}
