package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/interplay/internal/budget"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

func loadBundle(t *testing.T, bt skills.BusinessType) *skills.Bundle {
	t.Helper()
	reg, err := skills.NewDefaultRegistry(nil)
	require.NoError(t, err)
	b, err := reg.LoadSkill(bt)
	require.NoError(t, err)
	return b
}

func testInput(t *testing.T, bt skills.BusinessType, n int) Input {
	t.Helper()
	in := Input{ClientID: "acme", Bundle: loadBundle(t, bt)}
	for i := 0; i < n; i++ {
		q := fmt.Sprintf("running shoes %d", i)
		in.Keywords = append(in.Keywords, scout.Candidate{
			Query: q, RuleID: "high_spend_low_roas", RuleName: "High spend, low ROAS", Tier: skills.TierCritical,
			Record: &dataset.QueryRecord{Query: q, Paid: &dataset.PaidMetrics{Spend: float64(100 + i), Conversions: 1, ROAS: 1.2}},
		})
	}
	return in
}

const semAnswer = "```json\n" + `{"summary": "cut waste", "actions": [
  {"type": "display", "level": "campaign", "action": "Stop brand awareness display campaigns", "impact": "low", "rationale": "no conversions"},
  {"type": "bid_change", "level": "keyword", "keyword": "running shoes 1", "action": "Lower bids", "impact": "high", "rationale": "return below target"},
  {"type": "lead", "level": "account", "action": "Add a lead form extension", "impact": "medium", "rationale": "capture leads"},
  {"type": "negative_keyword", "level": "ad_group", "action": "Add negative keyword 'free'", "impact": "medium", "rationale": "irrelevant traffic"}
]}` + "\n```"

func TestSEMAnalyzeFiltersAndOrders(t *testing.T) {
	gen := llm.NewScripted(map[string]string{"sem_specialist": semAnswer})
	a := NewSEM(gen, Options{}, nil)

	res, err := a.Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 3))
	require.NoError(t, err)
	assert.Equal(t, llm.StatusOK, res.Status)
	require.NotNil(t, res.SEM)
	require.Len(t, res.SEM.Actions, 3)

	assert.Equal(t, "negative_keyword", res.SEM.Actions[0].Type, "prioritized first")
	assert.Equal(t, "bid_change", res.SEM.Actions[1].Type)
	assert.Equal(t, "display", res.SEM.Actions[2].Type, "deprioritized last")

	require.Len(t, res.Violations, 1)
	assert.Equal(t, "sem", res.Violations[0].Stage)
	assert.Contains(t, res.Violations[0].Snippet, "lead form")

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSON)
	assert.Contains(t, reqs[0].System, "paid-search")
	assert.Contains(t, reqs[0].Prompt, "running shoes 2")
	assert.Greater(t, res.Usage.EstimatedPromptTokens, 0)
}

func TestEmptyOutputIsWarningNotError(t *testing.T) {
	for _, body := range []string{`{"items": []}`, `{"actions": []}`, "[]"} {
		t.Run(body, func(t *testing.T) {
			gen := llm.NewScripted(map[string]string{"seo_specialist": body})
			res, err := NewSEO(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
			require.NoError(t, err)
			assert.Equal(t, llm.StatusEmpty, res.Status)
			require.NotNil(t, res.SEO)
			assert.Empty(t, res.SEO.Actions)
			assert.NotEmpty(t, res.Warnings)
		})
	}
}

func TestItemsAliasCarriesActions(t *testing.T) {
	body := `{"items": [{"type": "structured_data", "url": "/products/trail-x", "condition": "Product schema missing",
	  "recommendation": "Add Product schema", "impact": "high", "rationale": "rich results"}]}`
	gen := llm.NewScripted(map[string]string{"seo_specialist": body})
	res, err := NewSEO(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
	require.NoError(t, err)
	assert.Equal(t, llm.StatusOK, res.Status)
	require.Len(t, res.SEO.Actions, 1)
	assert.Equal(t, "/products/trail-x", res.SEO.Actions[0].URL)
}

func TestInvalidOutputIsHardFailure(t *testing.T) {
	body := `{"actions": [{"type": "bid_change", "level": "galaxy", "action": "x", "impact": "huge", "rationale": "y"}]}`
	gen := llm.NewScripted(map[string]string{"sem_specialist": body})
	_, err := NewSEM(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
	require.Error(t, err)
	var ve *llm.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Issues), 2)
}

func TestMalformedAndModelErrors(t *testing.T) {
	gen := llm.NewScripted(map[string]string{"sem_specialist": "I think you should lower bids."})
	_, err := NewSEM(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
	assert.True(t, errors.Is(err, llm.ErrResponseMalformed))

	gen.Fail("sem_specialist", errors.New("timeout"))
	_, err = NewSEM(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
	assert.True(t, errors.Is(err, llm.ErrModelCall))
}

func TestAllActionsFilteredIsEmpty(t *testing.T) {
	body := `{"actions": [{"type": "lead", "level": "account", "action": "Add a lead form", "impact": "high", "rationale": "r"}]}`
	gen := llm.NewScripted(map[string]string{"sem_specialist": body})
	res, err := NewSEM(gen, Options{}, nil).Analyze(context.Background(), testInput(t, skills.BusinessEcommerce, 1))
	require.NoError(t, err)
	assert.Equal(t, llm.StatusEmpty, res.Status)
	assert.Len(t, res.Violations, 1)
}

func TestPromptCarriesBundleFragments(t *testing.T) {
	a := NewSEO(llm.NewScripted(nil), Options{}, nil)
	in := testInput(t, skills.BusinessLeadGen, 2)
	system, user, _, err := a.Prompt(in)
	require.NoError(t, err)
	assert.Equal(t, in.Bundle.Prompts.SEORole, system)
	assert.Contains(t, user, "IGNORE these metrics")
	assert.Contains(t, user, "roas")
	assert.Contains(t, user, "## Benchmarks")
	assert.Contains(t, user, "## Constraints")
	assert.Contains(t, user, "Response format")
	assert.NotContains(t, user, "omitted to fit")
}

func TestPromptIncludesTruncationNotice(t *testing.T) {
	in := testInput(t, skills.BusinessEcommerce, 60)
	in.Bundle.Budget.FullModeThreshold = 100
	in.Bundle.Budget.CompactTokenTarget = 150
	_, user, payload, err := NewSEM(llm.NewScripted(nil), Options{}, nil).Prompt(in)
	require.NoError(t, err)
	require.Greater(t, payload.KeywordsDropped, 0)
	assert.Equal(t, 60, payload.KeywordsKept+payload.KeywordsDropped)
	assert.Contains(t, user, budget.TruncationNotice(payload.KeywordsDropped, "keywords"))
}

func TestPromptOverCeilingFails(t *testing.T) {
	in := testInput(t, skills.BusinessEcommerce, 3)
	in.Bundle.Budget.PromptCeiling = 50
	_, err := NewSEM(llm.NewScripted(nil), Options{}, nil).Analyze(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, budget.ErrBudgetExceeded))
	assert.True(t, strings.HasPrefix(err.Error(), "sem prompt"))
}
