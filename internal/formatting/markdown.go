// Package formatting renders a finished report as Markdown for humans.
package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/report"
)

// Markdown renders s. Recommendations that point at a page cite it inline
// as [n]; the cited pages are listed once under "## Sources" in first-use
// order.
func Markdown(s *report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Interplay report: %s\n\n", s.ClientID)
	fmt.Fprintf(&b, "- Report: `%s`\n", s.ReportID)
	fmt.Fprintf(&b, "- Business type: %s\n", s.BusinessType)
	fmt.Fprintf(&b, "- Period: %s to %s\n", s.DateStart, s.DateEnd)
	fmt.Fprintf(&b, "- Status: %s\n", s.Status)
	if s.CompletedAt != nil {
		fmt.Fprintf(&b, "- Completed: %s\n", s.CompletedAt.UTC().Format(time.RFC3339))
	}
	if s.ErrorMessage != "" {
		fmt.Fprintf(&b, "\n> Run failed: %s\n", s.ErrorMessage)
	}

	if es := s.ExecutiveSummary; es != nil {
		b.WriteString("\n## Executive summary\n\n")
		if es.Headline != "" {
			fmt.Fprintf(&b, "**%s**\n\n", es.Headline)
		}
		for _, h := range es.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		if es.Narrative != "" {
			fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(es.Narrative))
		}
	}

	cites := newCitations()
	if len(s.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n")
		for i, r := range s.Recommendations {
			writeRecommendation(&b, i+1, r, cites)
		}
	} else if s.Status == db.StatusCompleted {
		b.WriteString("\nNo changes recommended for this period.\n")
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	if len(cites.urls) > 0 {
		b.WriteString("\n## Sources\n\n")
		for i, u := range cites.urls {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, u)
		}
	}
	return b.String()
}

func writeRecommendation(b *strings.Builder, n int, r director.Recommendation, cites *citations) {
	title := r.Title
	if r.URL != "" {
		title = fmt.Sprintf("%s [%d]", title, cites.index(r.URL))
	}
	fmt.Fprintf(b, "\n### %d. %s\n\n", n, title)
	meta := []string{"channel: " + r.Channel, "impact: " + r.Impact}
	if r.Effort != "" {
		meta = append(meta, "effort: "+r.Effort)
	}
	meta = append(meta, fmt.Sprintf("score: %.2f", r.Score))
	if r.Keyword != "" {
		meta = append(meta, "keyword: "+r.Keyword)
	}
	if r.Required {
		meta = append(meta, "required")
	}
	fmt.Fprintf(b, "_%s_\n", strings.Join(meta, " | "))
	if r.Description != "" {
		fmt.Fprintf(b, "\n%s\n", r.Description)
	}
	if len(r.ActionItems) > 0 {
		b.WriteString("\n")
		for _, a := range r.ActionItems {
			fmt.Fprintf(b, "- [ ] %s\n", a)
		}
	}
}

type citations struct {
	urls []string
	seen map[string]int
}

func newCitations() *citations {
	return &citations{seen: make(map[string]int)}
}

// index returns the 1-based citation number of u, assigning one on first use.
func (c *citations) index(u string) int {
	if n, ok := c.seen[u]; ok {
		return n
	}
	c.urls = append(c.urls, u)
	c.seen[u] = len(c.urls)
	return len(c.urls)
}
