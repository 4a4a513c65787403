package director

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"go.uber.org/zap"
)

// Options configure the Director.
type Options struct {
	Factors Factors
	// Narrative enables the model-written summary narrative.
	Narrative   bool
	MaxTokens   int
	Temperature float64
}

// Director runs synthesis. The generator is optional and only used for the
// summary narrative.
type Director struct {
	gen    llm.TextGenerator
	opts   Options
	logger *zap.Logger
}

// New creates a Director. gen may be nil.
func New(gen llm.TextGenerator, opts Options, logger *zap.Logger) *Director {
	if opts.Factors.Revenue == nil {
		opts.Factors = DefaultFactors()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Director{gen: gen, opts: opts, logger: logger.With(zap.String("agent", "director"))}
}

// Synthesize merges both specialist results into the final report.
func (d *Director) Synthesize(ctx context.Context, in Input) (*Output, error) {
	if in.Bundle == nil {
		return nil, errors.New("director input has no skill bundle")
	}
	cfg := in.Bundle.Synthesis
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", in.Bundle.Key(), err)
	}

	out := &Output{}
	var sem, seo []*candidate
	if in.SEM != nil {
		out.Warnings = append(out.Warnings, in.SEM.Warnings...)
		if in.SEM.SEM != nil {
			for _, a := range in.SEM.SEM.Actions {
				sem = append(sem, fromSEM(a))
			}
		}
	} else {
		out.Warnings = append(out.Warnings, "sem result missing")
	}
	if in.SEO != nil {
		out.Warnings = append(out.Warnings, in.SEO.Warnings...)
		if in.SEO.SEO != nil {
			for _, a := range in.SEO.SEO.Actions {
				seo = append(seo, fromSEO(a))
			}
		}
	} else {
		out.Warnings = append(out.Warnings, "seo result missing")
	}
	out.Stats.Candidates = len(sem) + len(seo)

	// Conflicts first so a contradicting pair never becomes a synergy.
	conflicts := applyPairs(sem, seo, conflictRules(cfg))
	synergies := applyPairs(sem, seo, synergyRules(cfg))
	out.Stats.Conflicts = len(conflicts)
	out.Stats.Synergies = len(synergies)

	var pool []*candidate
	pool = append(pool, conflicts...)
	pool = append(pool, synergies...)
	for _, c := range append(sem, seo...) {
		if !c.consumed {
			pool = append(pool, c)
		}
	}

	var scored []*candidate
	for _, c := range pool {
		c.rec.Score = d.opts.Factors.baseScore(c.rec, cfg.Weights)
		kept, by := adjust(c, cfg.Adjustments)
		if !kept {
			out.Violations = append(out.Violations, agents.Violation{
				Stage: "director", RuleID: by.ID, Pattern: by.Pattern, Snippet: snippet(c.rec.Title),
			})
			out.Stats.Excluded++
			continue
		}
		if p, hit := skills.MatchAny(cfg.MustExclude, c.matchText()); hit {
			out.Violations = append(out.Violations, agents.Violation{
				Stage: "director", RuleID: "must_exclude", Pattern: p, Snippet: snippet(c.rec.Title),
			})
			out.Stats.Excluded++
			continue
		}
		if _, hit := skills.MatchAny(cfg.MustInclude, c.matchText()); hit {
			c.rec.Required = true
		}
		c.rec.Score = roundScore(c.rec.Score)
		scored = append(scored, c)
	}
	sortCandidates(scored)
	final := selectFinal(scored, cfg, &out.Stats)

	out.Recommendations = make([]Recommendation, 0, len(final))
	for _, c := range final {
		out.Recommendations = append(out.Recommendations, c.rec)
	}
	if out.Stats.RequiredDropped > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d required recommendations exceeded the cap of %d and were dropped", out.Stats.RequiredDropped, cfg.MaxRecommendations))
	}
	if n := countSignificant(final); n < cfg.MinHighImpact {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("only %d high or medium impact recommendations available, minimum is %d", n, cfg.MinHighImpact))
	}

	out.Summary = deterministicSummary(in, out.Recommendations, cfg.MaxHighlights)
	if d.opts.Narrative && d.gen != nil && len(out.Recommendations) > 0 {
		d.narrate(ctx, in, out)
	}

	d.logger.Info("Director synthesis complete",
		zap.String("client_id", in.ClientID),
		zap.Int("candidates", out.Stats.Candidates),
		zap.Int("conflicts", out.Stats.Conflicts),
		zap.Int("synergies", out.Stats.Synergies),
		zap.Int("excluded", out.Stats.Excluded),
		zap.Int("final", len(out.Recommendations)))
	return out, nil
}

func snippet(s string) string {
	if r := []rune(s); len(r) > 160 {
		return string(r[:160]) + "..."
	}
	return s
}
