package scout

import (
	"fmt"
	"testing"

	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ecommerceBundle(t *testing.T) *skills.Bundle {
	t.Helper()
	r, err := skills.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	b, err := r.LoadSkill(skills.BusinessEcommerce)
	require.NoError(t, err)
	return b
}

func threeQueryDataset() *dataset.InterplayDataset {
	return dataset.Merge("acme", dataset.DateRange{},
		[]sources.PaidRow{
			{Query: "trail running shoes", Spend: 400, Clicks: 200, Conversions: 3, ConversionValue: 300},
			{Query: "running shoes", Spend: 150, Clicks: 100, Conversions: 10, ConversionValue: 900},
		},
		[]sources.OrganicRow{
			{Query: "trail running shoes", URL: "https://shop.test/products/trail-x", Position: 9, Clicks: 20, Impressions: 1000},
			{Query: "running shoes", URL: "https://shop.test/collections/running", Position: 2, Clicks: 300, Impressions: 4000},
			{Query: "how to lace running shoes", URL: "https://shop.test/blog/lacing", Position: 5, Clicks: 80, Impressions: 2000},
		},
		[]sources.AnalyticsRow{
			{URL: "/products/trail-x", Sessions: 400, BounceRate: 0.7, Revenue: 300},
			{URL: "/collections/running", Sessions: 900, BounceRate: 0.3, Revenue: 2500},
		},
	)
}

func TestSelectEcommerceScenario(t *testing.T) {
	sel := Select(threeQueryDataset(), ecommerceBundle(t))

	require.NotEmpty(t, sel.Keywords)
	top := sel.Keywords[0]
	assert.Equal(t, "trail running shoes", top.Query)
	assert.Equal(t, skills.TierCritical, top.Tier)
	assert.Equal(t, "high_spend_low_roas", top.RuleID)

	byQuery := map[string]Candidate{}
	for _, c := range sel.Keywords {
		byQuery[c.Query] = c
	}
	assert.Equal(t, "cannibalization", byQuery["running shoes"].RuleID)
	assert.Equal(t, "striking_distance", byQuery["how to lace running shoes"].RuleID)

	require.NotEmpty(t, sel.Pages)
	assert.Equal(t, "/products/trail-x", sel.Pages[0].Path)
	assert.Equal(t, "leaky_product_page", sel.Pages[0].RuleID)
	assert.Empty(t, sel.Warnings)
}

func TestSelectRespectsBoundsAndOrdering(t *testing.T) {
	var paid []sources.PaidRow
	var organic []sources.OrganicRow
	for i := 0; i < 40; i++ {
		q := fmt.Sprintf("query %02d", i)
		paid = append(paid, sources.PaidRow{Query: q, Spend: float64(100 + i*10), Clicks: 10, ConversionValue: float64(i)})
		organic = append(organic, sources.OrganicRow{Query: q, URL: fmt.Sprintf("/p/%02d", i), Position: float64(1 + i%12), Clicks: int64(i), Impressions: 100})
	}
	var analytics []sources.AnalyticsRow
	for i := 0; i < 40; i++ {
		analytics = append(analytics, sources.AnalyticsRow{URL: fmt.Sprintf("/p/%02d", i), Sessions: int64(150 + i), BounceRate: 0.9, Revenue: float64(i)})
	}
	ds := dataset.Merge("acme", dataset.DateRange{}, paid, organic, analytics)

	b := ecommerceBundle(t)
	b.Scout.MaxKeywords = 7
	b.Scout.MaxPages = 4
	sel := Select(ds, b)

	assert.Len(t, sel.Keywords, 7)
	assert.Len(t, sel.Pages, 4)
	assert.Greater(t, sel.KeywordMatches, 7)

	for i := 1; i < len(sel.Keywords); i++ {
		prev, cur := sel.Keywords[i-1], sel.Keywords[i]
		require.LessOrEqual(t, prev.Tier.Rank(), cur.Tier.Rank())
		if prev.Tier == cur.Tier {
			pv, _ := prev.Record.Metric(b.KPIs.Primary[0])
			cv, _ := cur.Record.Metric(b.KPIs.Primary[0])
			require.GreaterOrEqual(t, pv, cv)
		}
	}
}

func TestSelectSkipsDisabledRules(t *testing.T) {
	ds := dataset.Merge("acme", dataset.DateRange{},
		[]sources.PaidRow{{Query: "wasted", Spend: 500, Clicks: 50}}, nil, nil)

	off := false
	b := &skills.Bundle{
		KPIs: skills.KPIs{Primary: []string{"spend"}},
		Scout: skills.ScoutConfig{MaxKeywords: 5, MaxPages: 5, Rules: []skills.ScoutRule{
			{ID: "disabled", Tier: skills.TierCritical, Target: "keyword", Enabled: &off,
				Conditions: []skills.Condition{{Metric: "spend", Op: "gt", Value: 0}}},
			{ID: "fallback", Tier: skills.TierMedium, Target: "keyword",
				Conditions: []skills.Condition{{Metric: "spend", Op: "gt", Value: 0}}},
			{ID: "typo", Tier: skills.TierHigh, Target: "keyword",
				Conditions: []skills.Condition{{Metric: "spennd", Op: "gt", Value: 0}}},
		}},
	}
	sel := Select(ds, b)
	require.Len(t, sel.Keywords, 1)
	assert.Equal(t, "fallback", sel.Keywords[0].RuleID)
	assert.Len(t, sel.Warnings, 1)
}

func TestSelectIsDeterministic(t *testing.T) {
	b := ecommerceBundle(t)
	assert.Equal(t, Select(threeQueryDataset(), b), Select(threeQueryDataset(), b))
}
