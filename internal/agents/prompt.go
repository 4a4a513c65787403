package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Kocoro-lab/interplay/internal/budget"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// buildPrompt assembles the system and user prompts for one specialist.
func buildPrompt(kind Kind, in Input, payload budget.Payload) (system, user string) {
	b := in.Bundle
	role := b.Prompts.SEMRole
	contract := semContract
	if kind == KindSEO {
		role = b.Prompts.SEORole
		contract = seoContract
	}

	var sb strings.Builder
	section := func(title string) {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## " + title + "\n")
	}

	section("Business context")
	fmt.Fprintf(&sb, "Business type: %s (skill %s)\n", b.BusinessType, b.Version)
	if ctx := strings.TrimSpace(b.Context); ctx != "" {
		sb.WriteString(ctx + "\n")
	}
	fmt.Fprintf(&sb, "Client: %s. Period: %s.\n", in.ClientID, in.DateRange.String())
	fmt.Fprintf(&sb, "Account totals: spend %.2f, conversion value %.2f, site revenue %.2f, organic clicks %d, %d queries (%d paid only, %d organic only, %d both).\n",
		in.Summary.TotalSpend, in.Summary.TotalConversionValue, in.Summary.TotalRevenue, in.Summary.TotalOrganicClicks,
		in.Summary.QueryCount, in.Summary.PaidOnly, in.Summary.OrganicOnly, in.Summary.Overlap)

	section("KPIs")
	writeList(&sb, "Primary", b.KPIs.Primary)
	writeList(&sb, "Secondary", b.KPIs.Secondary)
	if len(b.KPIs.Irrelevant) > 0 {
		fmt.Fprintf(&sb, "IGNORE these metrics, they do not apply to this business: %s\n", strings.Join(b.KPIs.Irrelevant, ", "))
	}

	if len(b.Benchmarks) > 0 {
		section("Benchmarks")
		keys := make([]string, 0, len(b.Benchmarks))
		for k := range b.Benchmarks {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %g\n", k, b.Benchmarks[k])
		}
	}

	if patterns := patternCatalogue(b); len(patterns) > 0 {
		section("Patterns to look for")
		for _, p := range patterns {
			sb.WriteString("- " + p + "\n")
		}
	}

	if len(b.Prompts.Constraints) > 0 {
		section("Constraints")
		for _, c := range b.Prompts.Constraints {
			sb.WriteString("- " + c + "\n")
		}
	}

	section(fmt.Sprintf("Battleground keywords (%s format)", payload.Decision.Mode))
	if payload.Keywords == "" {
		sb.WriteString("(none selected)\n")
	} else {
		sb.WriteString(strings.TrimRight(payload.Keywords, "\n") + "\n")
	}
	section(fmt.Sprintf("Critical pages (%s format)", payload.Decision.Mode))
	if payload.Pages == "" {
		sb.WriteString("(none selected)\n")
	} else {
		sb.WriteString(strings.TrimRight(payload.Pages, "\n") + "\n")
	}
	for _, n := range payload.Notices {
		sb.WriteString("\n" + n + "\n")
	}

	section("Response format")
	sb.WriteString(contract + "\n")
	return role, sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(items, ", "))
}

// patternCatalogue names what Scout and the Researcher flagged so the agent
// can refer to the same vocabulary.
func patternCatalogue(b *skills.Bundle) []string {
	var out []string
	for _, r := range b.Scout.Rules {
		if !r.IsEnabled() {
			continue
		}
		line := fmt.Sprintf("%s (%s, %s)", r.Name, r.ID, r.Tier)
		if r.Description != "" {
			line += ": " + r.Description
		}
		out = append(out, line)
	}
	for _, s := range b.Research.ContentSignals {
		out = append(out, fmt.Sprintf("on-page signal %s (%s importance)", s.Name, s.Importance))
	}
	out = append(out, b.Prompts.Patterns...)
	return out
}
