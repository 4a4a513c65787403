package skills

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalBundle = `---
business_type: saas
version: 1.0.0
description: Trial-led subscription software
kpis:
  primary: [conversions]
  irrelevant: [conversion_value]
synthesis:
  weights: {revenue: 0.5, cost: 0.2, effort: 0.2, risk: 0.1}
  max_recommendations: 6
---

# SaaS

Trials and demos are the conversion events.
`

func TestLoadBundleAppliesDefaults(t *testing.T) {
	b, err := LoadBundle(strings.NewReader(minimalBundle))
	require.NoError(t, err)

	assert.Equal(t, BusinessSaaS, b.BusinessType)
	assert.Equal(t, "saas@1.0.0", b.Key())
	assert.False(t, b.Placeholder)
	assert.Contains(t, b.Context, "Trials and demos")
	assert.Equal(t, []string{"conversions"}, b.KPIs.Primary)
	assert.Equal(t, 6, b.Synthesis.MaxRecommendations)
	assert.Equal(t, 25, b.Scout.MaxKeywords)
	assert.NotEmpty(t, b.Scout.Rules)
	assert.Equal(t, 10000, b.Research.FetchTimeoutMs)
	assert.Equal(t, 12000, b.Budget.FullModeThreshold)
	assert.Contains(t, b.Synthesis.MustExclude, `(?i)schema:?\s*Product\b`)
}

func TestLoadBundleRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no frontmatter",
			content: "# just markdown\n",
			wantErr: "must start with YAML frontmatter",
		},
		{
			name:    "unterminated frontmatter",
			content: "---\nbusiness_type: saas\n",
			wantErr: "unterminated",
		},
		{
			name:    "missing business type",
			content: "---\nversion: 1.0.0\n---\nbody\n",
			wantErr: "business_type is required",
		},
		{
			name:    "undeclared business type",
			content: "---\nbusiness_type: crypto_exchange\n---\nbody\n",
			wantErr: "unknown business type",
		},
		{
			name:    "empty context",
			content: "---\nbusiness_type: saas\n---\n\n",
			wantErr: "context narrative is empty",
		},
		{
			name:    "weights do not sum to one",
			content: "---\nbusiness_type: saas\nsynthesis:\n  weights: {revenue: 0.5, cost: 0.5, effort: 0.5, risk: 0}\n---\nbody\n",
			wantErr: "must sum to 1",
		},
		{
			name:    "max recommendations out of range",
			content: "---\nbusiness_type: saas\nsynthesis:\n  max_recommendations: 12\n---\nbody\n",
			wantErr: "within 5..10",
		},
		{
			name:    "invalid pattern",
			content: "---\nbusiness_type: saas\noutput:\n  sem:\n    exclude: ['(unclosed']\n---\nbody\n",
			wantErr: "output.sem.exclude[0]: invalid pattern",
		},
		{
			name: "bad tier",
			content: "---\nbusiness_type: saas\nscout:\n  rules:\n    - id: r1\n      tier: urgent\n      target: keyword\n" +
				"      conditions: [{metric: spend, op: gt, value: 1}]\n---\nbody\n",
			wantErr: "invalid tier",
		},
		{
			name:    "boost without factor",
			content: "---\nbusiness_type: saas\nsynthesis:\n  adjustments:\n    - {id: a1, pattern: x, action: boost}\n---\nbody\n",
			wantErr: "positive factor",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundle(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, CompareVersions("1.2.0", "1.1.9"))
	assert.Equal(t, -1, CompareVersions("1.0.0", "2.0.0"))
	assert.Equal(t, 0, CompareVersions("0.1.0-placeholder", "0.1.0"))
}

func TestConditionEval(t *testing.T) {
	lookup := func(m string) (float64, bool) {
		v, ok := map[string]float64{"spend": 150, "roas": 0.5}[m]
		return v, ok
	}
	assert.True(t, AllHold([]Condition{{Metric: "spend", Op: "gte", Value: 100}, {Metric: "roas", Op: "<", Value: 1}}, lookup))
	assert.False(t, AllHold([]Condition{{Metric: "spend", Op: "gte", Value: 100}, {Metric: "ctr", Op: "gt", Value: 0}}, lookup))
	assert.False(t, AllHold(nil, lookup))
}

func TestMatchIgnoresInvalidPatterns(t *testing.T) {
	assert.True(t, Match(`(?i)schema:?\s*product\b`, "Add schema: Product markup"))
	assert.False(t, Match(`(unclosed`, "anything"))
	assert.False(t, Match("", "anything"))

	p, ok := MatchAny([]string{"nope", `(?i)roas`}, "title", "Improve ROAS")
	assert.True(t, ok)
	assert.Equal(t, `(?i)roas`, p)
}
