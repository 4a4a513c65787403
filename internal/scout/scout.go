// Package scout triages the unified dataset into the bounded sets of
// battleground keywords and critical pages that later stages analyze.
// Selection is a pure function of the dataset and the bundle.
package scout

import (
	"fmt"
	"sort"

	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// Candidate is a keyword selected by a rule.
type Candidate struct {
	Query    string               `json:"query"`
	RuleID   string               `json:"rule_id"`
	RuleName string               `json:"rule_name"`
	Tier     skills.Tier          `json:"tier"`
	Record   *dataset.QueryRecord `json:"record"`
}

// PageCandidate is a landing page selected by a rule.
type PageCandidate struct {
	Path     string            `json:"path"`
	URL      string            `json:"url"`
	RuleID   string            `json:"rule_id"`
	RuleName string            `json:"rule_name"`
	Tier     skills.Tier       `json:"tier"`
	Page     *dataset.PageView `json:"page"`
}

// Selection is Scout's output. Matched counts are taken before truncation.
type Selection struct {
	Keywords       []Candidate     `json:"keywords"`
	Pages          []PageCandidate `json:"pages"`
	KeywordMatches int             `json:"keyword_matches"`
	PageMatches    int             `json:"page_matches"`
	Warnings       []string        `json:"warnings,omitempty"`
}

type metricSource interface {
	Metric(name string) (float64, bool)
}

// Select evaluates the bundle's enabled rules in order; the first rule that
// holds tags the item. Results are sorted by tier, then by the bundle's
// primary KPIs descending, then by key, and truncated to the bundle limits.
func Select(ds *dataset.InterplayDataset, b *skills.Bundle) Selection {
	var sel Selection
	sel.Warnings = unknownMetricWarnings(b.Scout.Rules)

	var keywordRules, pageRules []skills.ScoutRule
	for _, r := range b.Scout.Rules {
		if !r.IsEnabled() {
			continue
		}
		if r.Target == "page" {
			pageRules = append(pageRules, r)
		} else {
			keywordRules = append(keywordRules, r)
		}
	}

	for _, rec := range ds.Records {
		if rule, ok := firstMatch(keywordRules, rec); ok {
			sel.Keywords = append(sel.Keywords, Candidate{
				Query: rec.Query, RuleID: rule.ID, RuleName: rule.Name, Tier: rule.Tier, Record: rec,
			})
		}
	}
	for _, pv := range ds.PageViews() {
		if rule, ok := firstMatch(pageRules, pv); ok {
			sel.Pages = append(sel.Pages, PageCandidate{
				Path: pv.Path, URL: pv.URL, RuleID: rule.ID, RuleName: rule.Name, Tier: rule.Tier, Page: pv,
			})
		}
	}
	sel.KeywordMatches = len(sel.Keywords)
	sel.PageMatches = len(sel.Pages)

	primary := b.KPIs.Primary
	sort.SliceStable(sel.Keywords, func(i, j int) bool {
		a, c := sel.Keywords[i], sel.Keywords[j]
		return less(a.Tier, c.Tier, a.Record, c.Record, primary, a.Query, c.Query)
	})
	pagePrimary := append(append([]string{}, primary...), "sessions", "organic_clicks")
	sort.SliceStable(sel.Pages, func(i, j int) bool {
		a, c := sel.Pages[i], sel.Pages[j]
		return less(a.Tier, c.Tier, a.Page, c.Page, pagePrimary, a.Path, c.Path)
	})

	if limit := b.Scout.MaxKeywords; limit >= 0 && len(sel.Keywords) > limit {
		sel.Keywords = sel.Keywords[:limit]
	}
	if limit := b.Scout.MaxPages; limit >= 0 && len(sel.Pages) > limit {
		sel.Pages = sel.Pages[:limit]
	}
	return sel
}

func firstMatch(rules []skills.ScoutRule, src metricSource) (skills.ScoutRule, bool) {
	for _, r := range rules {
		if skills.AllHold(r.Conditions, src.Metric) {
			return r, true
		}
	}
	return skills.ScoutRule{}, false
}

func less(ta, tb skills.Tier, a, b metricSource, primary []string, ka, kb string) bool {
	if ta.Rank() != tb.Rank() {
		return ta.Rank() < tb.Rank()
	}
	for _, m := range primary {
		va, _ := a.Metric(m)
		vb, _ := b.Metric(m)
		if va != vb {
			return va > vb
		}
	}
	return ka < kb
}

var pageOnlyMetrics = map[string]bool{"query_count": true}

func unknownMetricWarnings(rules []skills.ScoutRule) []string {
	known := make(map[string]bool, len(dataset.MetricNames))
	for _, m := range dataset.MetricNames {
		known[m] = true
	}
	var out []string
	for _, r := range rules {
		for _, c := range r.Conditions {
			if !known[c.Metric] && !pageOnlyMetrics[c.Metric] {
				out = append(out, fmt.Sprintf("rule %s references unknown metric %q", r.ID, c.Metric))
			}
		}
	}
	return out
}
