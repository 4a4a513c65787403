package director

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

func bundle(t *testing.T, bt skills.BusinessType) *skills.Bundle {
	t.Helper()
	reg, err := skills.NewDefaultRegistry(nil)
	require.NoError(t, err)
	b, err := reg.LoadSkill(bt)
	require.NoError(t, err)
	return b
}

func semResult(actions ...agents.SEMAction) *agents.Result {
	return &agents.Result{Kind: agents.KindSEM, Status: llm.StatusOK, SEM: &agents.SEMOutput{Actions: actions}}
}

func seoResult(actions ...agents.SEOAction) *agents.Result {
	return &agents.Result{Kind: agents.KindSEO, Status: llm.StatusOK, SEO: &agents.SEOOutput{Actions: actions}}
}

func recText(r Recommendation) string {
	return r.Title + " " + r.Description + " " + strings.Join(r.ActionItems, " ")
}

func TestMustExcludeDropsInjectedAction(t *testing.T) {
	b := bundle(t, skills.BusinessLeadGen)
	in := Input{
		ClientID: "acme-law",
		Bundle:   b,
		SEM: semResult(agents.SEMAction{
			Type: "bid_change", Level: "keyword", Keyword: "divorce lawyer", Action: "Lower bids on divorce lawyer",
			Impact: "high", Rationale: "cost per conversion above target",
		}),
		SEO: seoResult(
			agents.SEOAction{
				Type: "structured_data", URL: "/services/divorce", Condition: "No markup",
				Recommendation: "Add schema:Product markup to the service page", Impact: "high", Rationale: "rich results",
			},
			agents.SEOAction{
				Type: "content", URL: "/contact", Condition: "Form below the fold",
				Recommendation: "Move the consultation form above the fold", Impact: "medium", Rationale: "engagement 0.3",
			},
		),
	}

	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, out.Recommendations)
	for _, r := range out.Recommendations {
		assert.False(t, skills.Match(`(?i)schema:?\s*Product\b`, recText(r)), "excluded pattern leaked: %q", r.Title)
	}
	require.NotEmpty(t, out.Violations)
	assert.Equal(t, "director", out.Violations[0].Stage)
	assert.Equal(t, "must_exclude", out.Violations[0].RuleID)
	assert.Equal(t, 1, out.Stats.Excluded)
}

func TestConflictBecomesHybrid(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	in := Input{
		Bundle: b,
		SEM: semResult(agents.SEMAction{
			Type: "bid_change", Level: "keyword", Keyword: "Trail Running Shoes", Action: "Reduce bids",
			Impact: "medium", Rationale: "ROAS 1.3",
		}),
		SEO: seoResult(agents.SEOAction{
			Type: "ranking", Keyword: "trail running shoes", Condition: "Position 6",
			Recommendation: "Improve ranking position with richer category copy", Impact: "medium", Rationale: "striking distance",
		}),
	}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Recommendations, 1)
	r := out.Recommendations[0]
	assert.Equal(t, ChannelHybrid, r.Channel)
	assert.Equal(t, "conflict:pause_vs_rank", r.Source)
	assert.Equal(t, "high", r.Impact)
	assert.Contains(t, r.Title, "trail running shoes")
	assert.Len(t, r.ActionItems, 2)
	assert.Equal(t, 1, out.Stats.Conflicts)
}

func TestConflictNeedsSameKeyword(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	in := Input{
		Bundle: b,
		SEM:    semResult(agents.SEMAction{Type: "bid_change", Level: "keyword", Keyword: "a", Action: "Reduce bids", Impact: "low", Rationale: "r"}),
		SEO:    seoResult(agents.SEOAction{Type: "ranking", Keyword: "b", Condition: "c", Recommendation: "Improve ranking", Impact: "low", Rationale: "r"}),
	}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Recommendations, 2)
	assert.Zero(t, out.Stats.Conflicts)
}

func TestSynergyMergesPair(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	in := Input{
		Bundle: b,
		SEM: semResult(agents.SEMAction{
			Type: "bid_change", Level: "keyword", Keyword: "wool socks", Action: "Increase bids by 20%",
			Impact: "high", Rationale: "ROAS 7 with lost IS budget",
		}),
		SEO: seoResult(agents.SEOAction{
			Type: "content", URL: "/products/wool-socks", Condition: "Thin product page",
			Recommendation: "Expand the product page copy", Impact: "medium", Rationale: "bounce 0.7",
		}),
	}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Recommendations, 1)
	assert.Equal(t, "synergy:bid_plus_landing_page", out.Recommendations[0].Source)
	assert.Equal(t, "/products/wool-socks", out.Recommendations[0].URL)
}

func TestAdjustmentsAndCap(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	var sem []agents.SEMAction
	for i := 0; i < 12; i++ {
		sem = append(sem, agents.SEMAction{
			Type: "bid_change", Level: "keyword", Keyword: fmt.Sprintf("kw %d", i),
			Action: fmt.Sprintf("Adjust bids on kw %d", i), Impact: "high", Effort: "low", Rationale: "r",
		})
	}
	sem = append(sem,
		agents.SEMAction{Type: "waste", Level: "account", Action: "Cut wasted spend on generic terms", Impact: "low", Effort: "high", Rationale: "r"},
		agents.SEMAction{Type: "display", Level: "campaign", Action: "Start display network expansion", Impact: "high", Rationale: "r"},
	)
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b, SEM: semResult(sem...)})
	require.NoError(t, err)

	assert.Len(t, out.Recommendations, b.Synthesis.MaxRecommendations)
	var sawRequired bool
	for i, r := range out.Recommendations {
		assert.NotContains(t, r.Title, "display network expansion")
		if strings.Contains(r.Title, "wasted spend") {
			sawRequired = true
			assert.True(t, r.Required)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, out.Recommendations[i-1].Score, r.Score)
		}
	}
	assert.True(t, sawRequired, "must_include item survives the cap")
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "display_excluded", out.Violations[0].RuleID)
}

func TestRequiredItemsStillRespectCap(t *testing.T) {
	b := bundle(t, skills.BusinessLeadGen)
	b.Synthesis.MaxRecommendations = 3
	b.Synthesis.MustInclude = []string{"(?i)negative keyword"}
	b.Synthesis.Adjustments = nil

	impacts := []string{"low", "high", "medium", "low", "high"}
	var sem []agents.SEMAction
	for i, impact := range impacts {
		sem = append(sem, agents.SEMAction{
			Type: "negative_keyword", Level: "campaign", Keyword: fmt.Sprintf("free query %d", i),
			Action: fmt.Sprintf("Add negative keyword free query %d", i), Impact: impact, Rationale: "no conversions",
		})
	}
	sem = append(sem, agents.SEMAction{Type: "bid_change", Level: "keyword", Keyword: "injury lawyer", Action: "Raise bids on injury lawyer", Impact: "high", Rationale: "r"})

	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b, SEM: semResult(sem...)})
	require.NoError(t, err)
	require.Len(t, out.Recommendations, 3)
	for _, r := range out.Recommendations {
		assert.True(t, r.Required)
		assert.NotEqual(t, "low", r.Impact)
	}
	assert.Equal(t, 2, out.Stats.RequiredDropped)
	assert.Contains(t, out.Warnings, "2 required recommendations exceeded the cap of 3 and were dropped")
}

func TestRequireAdjustmentCannotOverflowCap(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	var sem []agents.SEMAction
	for i := 0; i < b.Synthesis.MaxRecommendations+2; i++ {
		sem = append(sem, agents.SEMAction{
			Type: "negative_keyword", Level: "campaign", Keyword: fmt.Sprintf("cheap query %d", i),
			Action: fmt.Sprintf("Add negative keyword cheap query %d", i), Impact: "medium", Rationale: "spend without conversions",
		})
	}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b, SEM: semResult(sem...)})
	require.NoError(t, err)
	assert.Len(t, out.Recommendations, b.Synthesis.MaxRecommendations)
	assert.Equal(t, 2, out.Stats.RequiredDropped)
}

func TestBackfillRestoresSignificantItems(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	b.Synthesis.MaxRecommendations = 2
	b.Synthesis.MinHighImpact = 2
	b.Synthesis.MustInclude = nil
	b.Synthesis.Adjustments = []skills.Adjustment{{ID: "quick", Pattern: "(?i)quick win", Action: skills.AdjustBoost, Factor: 3}}

	sem := []agents.SEMAction{
		{Type: "x", Level: "account", Action: "quick win one", Impact: "low", Rationale: "r"},
		{Type: "x", Level: "account", Action: "quick win two", Impact: "low", Rationale: "r"},
		{Type: "x", Level: "account", Action: "restructure campaigns", Impact: "medium", Rationale: "r"},
		{Type: "x", Level: "account", Action: "rebuild match types", Impact: "high", Rationale: "r"},
	}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b, SEM: semResult(sem...)})
	require.NoError(t, err)
	require.Len(t, out.Recommendations, 2)
	for _, r := range out.Recommendations {
		assert.NotEqual(t, "low", r.Impact)
	}
	assert.Equal(t, 2, out.Stats.Backfilled)
}

func TestInvalidWeightsFail(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	b.Synthesis.Weights.Revenue = 0.9
	_, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestEmptyInputsStillSummarize(t *testing.T) {
	b := bundle(t, skills.BusinessEcommerce)
	sem := &agents.Result{Kind: agents.KindSEM, Status: llm.StatusEmpty, SEM: &agents.SEMOutput{Actions: []agents.SEMAction{}},
		Warnings: []string{"sem agent returned no actions"}}
	out, err := New(nil, Options{}, nil).Synthesize(context.Background(), Input{Bundle: b, SEM: sem})
	require.NoError(t, err)
	assert.Empty(t, out.Recommendations)
	assert.NotEmpty(t, out.Summary.Headline)
	assert.Contains(t, out.Warnings, "sem agent returned no actions")
	assert.Contains(t, out.Warnings, "seo result missing")
}

func narrativeInput(t *testing.T) Input {
	return Input{
		Bundle: bundle(t, skills.BusinessLeadGen),
		SEM: semResult(agents.SEMAction{Type: "negative_keyword", Level: "account", Action: "Add negative keyword free",
			Impact: "high", Rationale: "irrelevant clicks"}),
	}
}

func TestNarrativeFromModel(t *testing.T) {
	gen := llm.NewScripted(map[string]string{"director": "Focus the budget on qualified enquiries."})
	out, err := New(gen, Options{Narrative: true}, nil).Synthesize(context.Background(), narrativeInput(t))
	require.NoError(t, err)
	assert.Equal(t, "model", out.Summary.NarrativeSource)
	assert.Equal(t, "Focus the budget on qualified enquiries.", out.Summary.Narrative)
	require.Len(t, gen.Requests(), 1)
	assert.Contains(t, gen.Requests()[0].Prompt, "Add negative keyword free")
}

func TestNarrativeSanitized(t *testing.T) {
	gen := llm.NewScripted(map[string]string{"director": "Improve ROAS by adding a shopping campaign."})
	out, err := New(gen, Options{Narrative: true}, nil).Synthesize(context.Background(), narrativeInput(t))
	require.NoError(t, err)
	assert.Equal(t, "rules", out.Summary.NarrativeSource)
	assert.NotContains(t, out.Summary.Narrative, "ROAS")
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "director_narrative", out.Violations[0].Stage)
}

func TestNarrativeFailureIsSoft(t *testing.T) {
	gen := llm.NewScripted(nil).Fail("director", errors.New("overloaded"))
	out, err := New(gen, Options{Narrative: true}, nil).Synthesize(context.Background(), narrativeInput(t))
	require.NoError(t, err)
	assert.Equal(t, "rules", out.Summary.NarrativeSource)
	assert.NotEmpty(t, out.Summary.Narrative)
	assert.NotEmpty(t, out.Warnings)
}
