package director

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"go.uber.org/zap"
)

func deterministicSummary(in Input, recs []Recommendation, maxHighlights int) ExecutiveSummary {
	high := 0
	channels := map[string]int{}
	for _, r := range recs {
		if r.Impact == agents.ImpactHigh {
			high++
		}
		channels[r.Channel]++
	}

	s := ExecutiveSummary{NarrativeSource: "rules", Highlights: []string{}}
	if len(recs) == 0 {
		s.Headline = "No changes recommended for this period."
		s.Narrative = "Neither the paid nor the organic analysis found an action worth taking for this period."
		return s
	}
	s.Headline = fmt.Sprintf("%d recommendations, %d high impact, across paid and organic search.", len(recs), high)

	if maxHighlights <= 0 {
		maxHighlights = 3
	}
	for i, r := range recs {
		if i == maxHighlights {
			break
		}
		s.Highlights = append(s.Highlights, fmt.Sprintf("%s (%s impact, %s)", r.Title, r.Impact, r.Channel))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Over this period the account spent %.2f on paid search and earned %d organic clicks across %d queries, %d of them covered by both channels. ",
		in.Summary.TotalSpend, in.Summary.TotalOrganicClicks, in.Summary.QueryCount, in.Summary.Overlap)
	fmt.Fprintf(&sb, "The plan has %d paid, %d organic and %d combined recommendations. ",
		channels[ChannelSEM], channels[ChannelSEO], channels[ChannelHybrid])
	fmt.Fprintf(&sb, "Start with: %s.", recs[0].Title)
	s.Narrative = sb.String()
	return s
}

// narrate asks the model for the narrative. Any failure, or prose that
// matches the bundle's deny-list, keeps the deterministic narrative.
func (d *Director) narrate(ctx context.Context, in Input, out *Output) {
	var sb strings.Builder
	sb.WriteString("Write a three to five sentence executive narrative for the client's leadership. ")
	sb.WriteString("Use only the facts below. Do not add, remove or reorder recommendations. Plain prose, no lists, no JSON.\n\n")
	fmt.Fprintf(&sb, "Business type: %s\n", in.Bundle.BusinessType)
	fmt.Fprintf(&sb, "Headline: %s\n", out.Summary.Headline)
	sb.WriteString("Recommendations in priority order:\n")
	for i, r := range out.Recommendations {
		fmt.Fprintf(&sb, "%d. %s [%s impact, %s effort, %s]: %s\n", i+1, r.Title, r.Impact, r.Effort, r.Channel, r.Description)
	}
	if len(in.Bundle.Synthesis.MustExclude) > 0 {
		sb.WriteString("\nNever mention concepts that do not apply to this business.\n")
	}

	resp, err := d.gen.Generate(ctx, llm.Request{
		AgentID:     "director",
		System:      in.Bundle.Prompts.DirectorRole,
		Prompt:      sb.String(),
		MaxTokens:   d.opts.MaxTokens,
		Temperature: d.opts.Temperature,
	})
	if err != nil {
		d.logger.Warn("Narrative generation failed, using rule-based summary", zap.Error(err))
		out.Warnings = append(out.Warnings, "executive narrative unavailable: "+err.Error())
		return
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		out.Warnings = append(out.Warnings, "executive narrative was empty")
		return
	}
	if p, hit := skills.MatchAny(in.Bundle.ExclusionPatterns(), text); hit {
		d.logger.Warn("Narrative matched an excluded pattern, using rule-based summary", zap.String("pattern", p))
		out.Violations = append(out.Violations, agents.Violation{
			Stage: "director_narrative", RuleID: "must_exclude", Pattern: p, Snippet: snippet(text),
		})
		return
	}
	out.Summary.Narrative = text
	out.Summary.NarrativeSource = "model"
}
