package director

import (
	"fmt"
	"strings"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// candidate is a recommendation under construction. text is the original
// specialist wording that conflict and synergy patterns match against.
type candidate struct {
	rec      Recommendation
	text     string
	consumed bool
}

func (c *candidate) matchText() string {
	return strings.Join(append([]string{c.rec.Title, c.rec.Description, c.text}, c.rec.ActionItems...), " ")
}

func fromSEM(a agents.SEMAction) *candidate {
	desc := a.Rationale
	if a.ExpectedOutcome != "" {
		desc = strings.TrimRight(desc, ". ") + ". Expected outcome: " + a.ExpectedOutcome
	}
	title := a.Action
	if a.Keyword != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(a.Keyword)) {
		title = fmt.Sprintf("%s (%q)", title, a.Keyword)
	}
	return &candidate{
		rec: Recommendation{
			Title:       title,
			Description: desc,
			Channel:     ChannelSEM,
			Impact:      normImpact(a.Impact),
			Effort:      normEffort(a.Effort),
			ActionItems: []string{a.Action},
			Source:      "sem:" + a.Type,
			Keyword:     dataset.NormalizeQuery(a.Keyword),
		},
		text: a.Text(),
	}
}

func fromSEO(a agents.SEOAction) *candidate {
	items := a.SpecificActions
	if len(items) == 0 {
		items = []string{a.Recommendation}
	}
	desc := a.Condition
	if a.Rationale != "" {
		desc = strings.TrimRight(desc, ". ") + ". " + a.Rationale
	}
	return &candidate{
		rec: Recommendation{
			Title:       a.Recommendation,
			Description: desc,
			Channel:     ChannelSEO,
			Impact:      normImpact(a.Impact),
			Effort:      normEffort(a.Effort),
			ActionItems: capItems(items),
			Source:      "seo:" + a.Type,
			Keyword:     dataset.NormalizeQuery(a.Keyword),
			URL:         a.URL,
		},
		text: a.Text(),
	}
}

// pairRule is the common shape of conflict and synergy rules.
type pairRule struct {
	kind        string
	id          string
	semPattern  string
	seoPattern  string
	sameKeyword bool
	title       string
	description string
	impact      string
}

// applyPairs replaces each matching (SEM, SEO) pair with one hybrid item.
// Each candidate takes part in at most one pair; rules apply in order and
// pair the earliest unconsumed matches.
func applyPairs(sem, seo []*candidate, rules []pairRule) (hybrids []*candidate) {
	for _, r := range rules {
		for _, s := range sem {
			if s.consumed || !skills.Match(r.semPattern, s.matchText()) {
				continue
			}
			for _, o := range seo {
				if o.consumed || !skills.Match(r.seoPattern, o.matchText()) {
					continue
				}
				if r.sameKeyword && (s.rec.Keyword == "" || s.rec.Keyword != o.rec.Keyword) {
					continue
				}
				s.consumed, o.consumed = true, true
				hybrids = append(hybrids, merge(r, s, o))
				break
			}
		}
	}
	return hybrids
}

func merge(r pairRule, s, o *candidate) *candidate {
	title := r.title
	keyword := s.rec.Keyword
	if keyword == "" {
		keyword = o.rec.Keyword
	}
	if keyword != "" {
		title = fmt.Sprintf("%s for %q", title, keyword)
	}
	impact := r.impact
	if impact == "" {
		impact = higherImpact(s.rec.Impact, o.rec.Impact)
	}
	items := append(append([]string(nil), s.rec.ActionItems...), o.rec.ActionItems...)
	return &candidate{
		rec: Recommendation{
			Title:       title,
			Description: r.description,
			Channel:     ChannelHybrid,
			Impact:      normImpact(impact),
			Effort:      harderEffort(s.rec.Effort, o.rec.Effort),
			ActionItems: capItems(items),
			Source:      r.kind + ":" + r.id,
			Keyword:     keyword,
			URL:         o.rec.URL,
		},
		text: s.text + " " + o.text,
	}
}

func conflictRules(cfg skills.SynthesisConfig) []pairRule {
	out := make([]pairRule, 0, len(cfg.Conflicts))
	for _, c := range cfg.Conflicts {
		out = append(out, pairRule{
			kind: "conflict", id: c.ID, semPattern: c.SEMPattern, seoPattern: c.SEOPattern,
			sameKeyword: c.SameKeyword, title: c.Title, description: c.Description, impact: c.Impact,
		})
	}
	return out
}

func synergyRules(cfg skills.SynthesisConfig) []pairRule {
	out := make([]pairRule, 0, len(cfg.Synergies))
	for _, s := range cfg.Synergies {
		out = append(out, pairRule{
			kind: "synergy", id: s.ID, semPattern: s.SEMCondition, seoPattern: s.SEOCondition,
			sameKeyword: s.SameKeyword, title: s.Title, description: s.Description, impact: s.Impact,
		})
	}
	return out
}

func capItems(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == MaxActionItems {
			break
		}
	}
	return out
}

func levelRank(level string) int {
	switch level {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	}
	return 0
}

func normImpact(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if levelRank(s) == 0 {
		return agents.ImpactMedium
	}
	return s
}

func normEffort(s string) string { return normImpact(s) }

func higherImpact(a, b string) string {
	if levelRank(b) > levelRank(a) {
		return b
	}
	return a
}

func harderEffort(a, b string) string { return higherImpact(a, b) }
