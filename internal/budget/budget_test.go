package budget

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

func testConfig() skills.BudgetConfig {
	return skills.BudgetConfig{
		FullModeThreshold:  12000,
		CompactTokenTarget: 8000,
		PromptCeiling:      24000,
		SpendWeight:        1,
		ConversionWeight:   2,
		ReasonWeights:      map[string]float64{"critical": 3, "high": 2, "medium": 1},
	}
}

func keywords(n int) []scout.Candidate {
	out := make([]scout.Candidate, n)
	for i := range out {
		out[i] = scout.Candidate{
			Query:    fmt.Sprintf("keyword %03d", i),
			RuleID:   "striking_distance",
			RuleName: "Organic striking distance",
			Tier:     skills.TierMedium,
			Record: &dataset.QueryRecord{
				Query: fmt.Sprintf("keyword %03d", i),
				Paid:  &dataset.PaidMetrics{Spend: float64(i * 10), Clicks: int64(i), Conversions: float64(i % 7)},
			},
		}
	}
	return out
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	// Runes, not bytes.
	assert.Equal(t, 1, EstimateTokens("éééé"))
}

func TestPrioritizeAndTruncateKeepsExactlyBudget(t *testing.T) {
	items := []int{5, 1, 9, 3, 7, 2}
	tr := PrioritizeAndTruncate(items, 3, func(v int) float64 { return float64(v) })
	assert.Equal(t, []int{9, 7, 5}, tr.Kept)
	assert.Equal(t, 3, tr.Dropped)

	all := PrioritizeAndTruncate(items, 10, func(v int) float64 { return float64(v) })
	assert.Len(t, all.Kept, 6)
	assert.Zero(t, all.Dropped)

	unbounded := PrioritizeAndTruncate(items, -1, func(v int) float64 { return 0 })
	assert.Equal(t, items, unbounded.Kept, "equal scores keep input order")
}

func TestPrioritizeAndTruncateStableOnTies(t *testing.T) {
	type item struct {
		id    string
		score float64
	}
	items := []item{{"a", 1}, {"b", 2}, {"c", 1}, {"d", 2}}
	tr := PrioritizeAndTruncate(items, 3, func(i item) float64 { return i.score })
	ids := []string{tr.Kept[0].id, tr.Kept[1].id, tr.Kept[2].id}
	assert.Equal(t, []string{"b", "d", "a"}, ids)
}

func TestScoreUsesConfiguredWeights(t *testing.T) {
	cfg := testConfig()
	base := Score(1, 0, 0, "critical", cfg)
	assert.InDelta(t, 3.0, base, 1e-9)

	boosted := Score(2, 100, 4, "medium", cfg)
	unboosted := Score(1, 100, 4, "medium", cfg)
	assert.Greater(t, boosted, unboosted)

	cfg.ConversionWeight = 0
	cfg.SpendWeight = 0
	assert.InDelta(t, 1.0, Score(5, 1000, 100, "medium", cfg), 1e-9)
	assert.InDelta(t, 0.0, Score(1, 0, 0, "unknown", cfg), 1e-9)
}

func TestTruncationNotice(t *testing.T) {
	assert.Empty(t, TruncationNotice(0, "keywords"))
	n := TruncationNotice(4, "keywords")
	assert.Contains(t, n, "4 lower-priority keywords")
}

func TestCheckCeiling(t *testing.T) {
	assert.NoError(t, CheckCeiling(strings.Repeat("a", 40), 10))
	err := CheckCeiling(strings.Repeat("a", 44), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.NoError(t, CheckCeiling(strings.Repeat("a", 1000), 0), "zero ceiling disables the check")
}

func TestDetermineModeFullUnderThreshold(t *testing.T) {
	kw := keywords(5)
	d := DetermineMode(kw, nil, testConfig())
	assert.Equal(t, ModeFull, d.Mode)
	assert.Equal(t, 5, d.KeywordBudget)
	assert.Zero(t, d.PageBudget)
	assert.Greater(t, d.EstimatedTokens, 0)
}

func TestDetermineModeCompactSplitsBudget(t *testing.T) {
	cfg := testConfig()
	cfg.FullModeThreshold = 100
	cfg.CompactTokenTarget = 200

	kw := keywords(40)
	pages := []research.PageResult{
		{PageCandidate: scout.PageCandidate{Path: "/a", URL: "https://shop.example/a", RuleID: "leaky"}},
		{PageCandidate: scout.PageCandidate{Path: "/b", URL: "https://shop.example/b", RuleID: "leaky"}},
	}
	d := DetermineMode(kw, pages, cfg)
	assert.Equal(t, ModeCompact, d.Mode)
	assert.Greater(t, d.KeywordBudget, 0)
	assert.Less(t, d.KeywordBudget, 40)
	assert.GreaterOrEqual(t, d.PageBudget, 1, "non-empty category keeps at least one item")
	assert.LessOrEqual(t, d.PageBudget, 2)
}

func TestPrepareTruncatesAndAddsNotice(t *testing.T) {
	cfg := testConfig()
	cfg.FullModeThreshold = 50
	cfg.CompactTokenTarget = 120

	kw := keywords(30)
	p := Prepare(kw, nil, cfg)
	require.Equal(t, ModeCompact, p.Decision.Mode)
	assert.Equal(t, p.Decision.KeywordBudget, p.KeywordsKept)
	assert.Equal(t, 30-p.KeywordsKept, p.KeywordsDropped)
	require.Len(t, p.Notices, 1)
	assert.Contains(t, p.Notices[0], fmt.Sprintf("%d lower-priority keywords", p.KeywordsDropped))

	lines := strings.Split(strings.TrimSpace(p.Keywords), "\n")
	assert.Len(t, lines, p.KeywordsKept+1, "header plus one line per kept keyword")
	// 27 has the best spend and conversion mix.
	assert.True(t, strings.HasPrefix(lines[1], "keyword 027|"),
		"unexpected first row %q", lines[1])
}

func TestSerializeFullIncludesFetchErrors(t *testing.T) {
	out := SerializePages([]research.PageResult{{
		PageCandidate: scout.PageCandidate{Path: "/x", URL: "https://shop.example/x", RuleName: "Leaky"},
		Error:         "HTTP 500",
	}}, ModeFull)
	assert.Contains(t, out, `"fetch_error": "HTTP 500"`)
	assert.Contains(t, out, `"url": "https://shop.example/x"`)
	assert.Empty(t, SerializeKeywords(nil, ModeFull))
}
