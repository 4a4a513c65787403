// Package budget keeps agent prompts inside the model's context budget:
// token estimation, full/compact serialization mode, priority truncation
// and a final ceiling check.
package budget

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// ErrBudgetExceeded means an assembled prompt is over the absolute
// ceiling after truncation. It signals a configuration defect; callers must
// fail rather than truncate further.
var ErrBudgetExceeded = errors.New("prompt exceeds token ceiling")

// Mode is the serialization mode.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeCompact Mode = "compact"
)

// EstimateTokens approximates the token count as ceil(runes / 4).
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// ModeDecision is the outcome of DetermineMode.
type ModeDecision struct {
	Mode            Mode `json:"mode"`
	EstimatedTokens int  `json:"estimated_tokens"`
	KeywordBudget   int  `json:"keyword_budget"`
	PageBudget      int  `json:"page_budget"`
}

// DetermineMode estimates the full-mode payload; above the threshold it
// switches to compact mode and splits the compact token target between
// keywords and pages in proportion to their compact size. A non-empty
// category always keeps at least one item.
func DetermineMode(keywords []scout.Candidate, pages []research.PageResult, cfg skills.BudgetConfig) ModeDecision {
	full := EstimateTokens(SerializeKeywords(keywords, ModeFull)) + EstimateTokens(SerializePages(pages, ModeFull))
	if full <= cfg.FullModeThreshold {
		return ModeDecision{Mode: ModeFull, EstimatedTokens: full, KeywordBudget: len(keywords), PageBudget: len(pages)}
	}

	kTokens := EstimateTokens(SerializeKeywords(keywords, ModeCompact))
	pTokens := EstimateTokens(SerializePages(pages, ModeCompact))
	d := ModeDecision{Mode: ModeCompact, EstimatedTokens: kTokens + pTokens}
	total := kTokens + pTokens
	if total == 0 {
		return d
	}
	target := float64(cfg.CompactTokenTarget)
	d.KeywordBudget = categoryBudget(len(keywords), kTokens, target*float64(kTokens)/float64(total))
	d.PageBudget = categoryBudget(len(pages), pTokens, target*float64(pTokens)/float64(total))
	return d
}

func categoryBudget(n, tokens int, share float64) int {
	if n == 0 {
		return 0
	}
	perItem := float64(tokens) / float64(n)
	b := int(share / math.Max(perItem, 1))
	if b < 1 {
		b = 1
	}
	if b > n {
		b = n
	}
	return b
}

// Truncation is the result of PrioritizeAndTruncate.
type Truncation[T any] struct {
	Kept    []T
	Dropped int
}

// PrioritizeAndTruncate stable-sorts items by score descending and keeps the
// top budget items. A negative budget keeps everything.
func PrioritizeAndTruncate[T any](items []T, budget int, score func(T) float64) Truncation[T] {
	type scored struct {
		item  T
		score float64
	}
	s := make([]scored, len(items))
	for i, it := range items {
		s[i] = scored{item: it, score: score(it)}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].score > s[j].score })

	keep := len(s)
	if budget >= 0 && budget < keep {
		keep = budget
	}
	out := Truncation[T]{Kept: make([]T, keep), Dropped: len(s) - keep}
	for i := 0; i < keep; i++ {
		out.Kept[i] = s[i].item
	}
	return out
}

// Score combines a boost with spend and conversion magnitude plus a
// per-reason weight. Every constant comes from cfg.
func Score(boost, spend, conversions float64, reason string, cfg skills.BudgetConfig) float64 {
	if boost <= 0 {
		boost = 1
	}
	magnitude := cfg.SpendWeight*math.Log1p(math.Max(spend, 0)) + cfg.ConversionWeight*math.Log1p(math.Max(conversions, 0))
	return boost*magnitude + cfg.ReasonWeights[reason]
}

// KeywordScore scores a keyword candidate by its boost, paid magnitude and tier.
func KeywordScore(cfg skills.BudgetConfig) func(scout.Candidate) float64 {
	return func(c scout.Candidate) float64 {
		var spend, conv float64
		boost := 1.0
		if c.Record != nil {
			spend, _ = c.Record.Metric("spend")
			conv, _ = c.Record.Metric("conversions")
			boost, _ = c.Record.Metric("priority_boost")
		}
		return Score(boost, spend, conv, string(c.Tier), cfg)
	}
}

// PageScore scores a page by the paid and on-site magnitude behind it.
func PageScore(cfg skills.BudgetConfig) func(research.PageResult) float64 {
	return func(p research.PageResult) float64 {
		var spend, conv float64
		if p.Page != nil {
			spend = p.Page.Spend
			conv = p.Page.Conversions
			if p.Page.Site != nil {
				conv += p.Page.Site.Conversions
			}
		}
		return Score(1, spend, conv, string(p.Tier), cfg)
	}
}

// TruncationNotice is the sentence a prompt must carry when items were
// dropped; empty when nothing was.
func TruncationNotice(dropped int, category string) string {
	if dropped <= 0 {
		return ""
	}
	return fmt.Sprintf("NOTE: %d lower-priority %s were omitted to fit the analysis budget; "+
		"do not assume they are absent from the account.", dropped, category)
}

// CheckCeiling fails with ErrBudgetExceeded when prompt is over ceiling.
func CheckCeiling(prompt string, ceiling int) error {
	if ceiling <= 0 {
		return nil
	}
	if n := EstimateTokens(prompt); n > ceiling {
		return fmt.Errorf("%w: estimated %d tokens, ceiling %d", ErrBudgetExceeded, n, ceiling)
	}
	return nil
}

// Payload is the budgeted, serialized data block for one agent prompt.
type Payload struct {
	Decision        ModeDecision `json:"decision"`
	KeywordsKept    int          `json:"keywords_kept"`
	KeywordsDropped int          `json:"keywords_dropped"`
	PagesKept       int          `json:"pages_kept"`
	PagesDropped    int          `json:"pages_dropped"`
	Keywords        string       `json:"-"`
	Pages           string       `json:"-"`
	Notices         []string     `json:"notices,omitempty"`
}

// Prepare decides the mode, truncates both categories by priority and
// serializes what is kept.
func Prepare(keywords []scout.Candidate, pages []research.PageResult, cfg skills.BudgetConfig) Payload {
	d := DetermineMode(keywords, pages, cfg)
	kt := PrioritizeAndTruncate(keywords, d.KeywordBudget, KeywordScore(cfg))
	pt := PrioritizeAndTruncate(pages, d.PageBudget, PageScore(cfg))
	p := Payload{
		Decision:        d,
		KeywordsKept:    len(kt.Kept),
		KeywordsDropped: kt.Dropped,
		PagesKept:       len(pt.Kept),
		PagesDropped:    pt.Dropped,
		Keywords:        SerializeKeywords(kt.Kept, d.Mode),
		Pages:           SerializePages(pt.Kept, d.Mode),
	}
	if n := TruncationNotice(kt.Dropped, "keywords"); n != "" {
		p.Notices = append(p.Notices, n)
	}
	if n := TruncationNotice(pt.Dropped, "pages"); n != "" {
		p.Notices = append(p.Notices, n)
	}
	return p
}
