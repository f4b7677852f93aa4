package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.Equal(t, 4.0, p.Fallback.Hours)
	assert.Equal(t, 1.35, p.Fallback.Multiplier)
	assert.Equal(t, 0.85, p.Fallback.RangeLowFactor)
	assert.Equal(t, 1.25, p.Fallback.RangeHighFactor)
	assert.Equal(t, 0.5, p.Fallback.Confidence)
	assert.Equal(t, 4, p.Questions.Max)
	assert.Len(t, p.ProfitLeaks, 6)
}

func TestLoadFillsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `pricing:
  fallback:
    hours: 6
  questions:
    max: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6.0, p.Fallback.Hours)
	assert.Equal(t, 3, p.Questions.Max)
	// Unset fields come from defaults.
	assert.Equal(t, 1.35, p.Fallback.Multiplier)
	assert.Equal(t, 0.20, p.Verification.MarketTolerance)
	assert.NotEmpty(t, p.ProfitLeaks)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/policy.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pricing: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDetectLeaks(t *testing.T) {
	t.Parallel()

	p := Default()

	tests := []struct {
		name       string
		text       string
		wantCats   []string
		wantBuffer float64
	}{
		{
			name:       "no leaks",
			text:       "Change the header color to blue",
			wantCats:   nil,
			wantBuffer: 0,
		},
		{
			name:       "travel only",
			text:       "We need an on-site visit to install the fixtures",
			wantCats:   []string{"travel"},
			wantBuffer: 0.10,
		},
		{
			name:       "multiple categories",
			text:       "Remove the old deck, haul away the debris, and coordinate with the plumbing vendor",
			wantCats:   []string{"disposal", "coordination"},
			wantBuffer: 0.16,
		},
		{
			name:       "category counted once despite multiple keywords",
			text:       "travel to the site, then commute back for a second visit",
			wantCats:   []string{"travel"},
			wantBuffer: 0.10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cats, buffer := p.DetectLeaks(tt.text)
			assert.Equal(t, tt.wantCats, cats)
			assert.InDelta(t, tt.wantBuffer, buffer, 1e-9)
		})
	}
}
