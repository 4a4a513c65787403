package budget

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
)

type keywordView struct {
	Query        string                      `json:"query"`
	Reason       string                      `json:"reason"`
	Tier         string                      `json:"tier"`
	Paid         *dataset.PaidMetrics        `json:"paid,omitempty"`
	Organic      *dataset.OrganicMetrics     `json:"organic,omitempty"`
	Site         *dataset.SiteMetrics        `json:"site,omitempty"`
	Competitive  *dataset.CompetitiveMetrics `json:"competitive,omitempty"`
	BoostReasons []string                    `json:"boost_reasons,omitempty"`
}

type pageView struct {
	URL           string   `json:"url"`
	Reason        string   `json:"reason"`
	Tier          string   `json:"tier"`
	Sessions      int64    `json:"sessions,omitempty"`
	BounceRate    float64  `json:"bounce_rate,omitempty"`
	Engagement    float64  `json:"engagement_rate,omitempty"`
	Revenue       float64  `json:"revenue,omitempty"`
	OrganicClicks int64    `json:"organic_clicks,omitempty"`
	Position      float64  `json:"position,omitempty"`
	Title         string   `json:"title,omitempty"`
	PageType      string   `json:"page_type,omitempty"`
	SchemaFound   []string `json:"schema_found,omitempty"`
	SchemaMissing []string `json:"schema_missing,omitempty"`
	SchemaFlagged []string `json:"schema_flagged,omitempty"`
	Signals       []string `json:"signals,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	FetchError    string   `json:"fetch_error,omitempty"`
}

// SerializeKeywords renders keyword candidates for a prompt. Full mode is
// indented JSON; compact mode is one pipe-delimited line per keyword under a
// header.
func SerializeKeywords(items []scout.Candidate, mode Mode) string {
	if len(items) == 0 {
		return ""
	}
	if mode == ModeCompact {
		var sb strings.Builder
		sb.WriteString("query|reason|spend|conv|roas|cpc|pos|org_clicks|is|boosts\n")
		for _, c := range items {
			r := c.Record
			if r == nil {
				r = &dataset.QueryRecord{Query: c.Query}
			}
			fields := []string{c.Query, c.RuleID, "-", "-", "-", "-", "-", "-", "-", "-"}
			if r.Paid != nil {
				fields[2] = num(r.Paid.Spend)
				fields[3] = num(r.Paid.Conversions)
				fields[4] = num(r.Paid.ROAS)
				fields[5] = num(r.Paid.CPC)
			}
			if r.Organic != nil {
				fields[6] = num(r.Organic.Position)
				fields[7] = strconv.FormatInt(r.Organic.Clicks, 10)
			}
			if r.Competitive != nil {
				fields[8] = num(r.Competitive.ImpressionShare)
			}
			if len(r.BoostReasons) > 0 {
				fields[9] = strings.Join(r.BoostReasons, ";")
			}
			sb.WriteString(strings.Join(fields, "|"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	views := make([]keywordView, 0, len(items))
	for _, c := range items {
		v := keywordView{Query: c.Query, Reason: c.RuleName, Tier: string(c.Tier)}
		if r := c.Record; r != nil {
			v.Paid, v.Organic, v.Site, v.Competitive = r.Paid, r.Organic, r.Site, r.Competitive
			v.BoostReasons = r.BoostReasons
		}
		views = append(views, v)
	}
	return marshal(views)
}

// SerializePages renders researched pages for a prompt. Failed fetches are
// kept with their error so the agent knows the page could not be read.
func SerializePages(items []research.PageResult, mode Mode) string {
	if len(items) == 0 {
		return ""
	}
	if mode == ModeCompact {
		var sb strings.Builder
		sb.WriteString("url|reason|sessions|bounce|revenue|type|schema_missing|signals\n")
		for _, p := range items {
			fields := []string{p.URL, p.RuleID, "-", "-", "-", "-", "-", "-"}
			if p.URL == "" {
				fields[0] = p.Path
			}
			if p.Page != nil && p.Page.Site != nil {
				fields[2] = strconv.FormatInt(p.Page.Site.Sessions, 10)
				fields[3] = num(p.Page.Site.BounceRate)
				fields[4] = num(p.Page.Site.Revenue)
			}
			if c := p.Content; c != nil {
				fields[5] = c.PageType
				if len(c.StructuredData.Missing) > 0 {
					fields[6] = strings.Join(c.StructuredData.Missing, ";")
				}
				if len(c.Signals) > 0 {
					fields[7] = strings.Join(signalNames(c.Signals), ";")
				}
			} else if p.Error != "" {
				fields[5] = "unfetched"
			}
			sb.WriteString(strings.Join(fields, "|"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	views := make([]pageView, 0, len(items))
	for _, p := range items {
		v := pageView{URL: p.URL, Reason: p.RuleName, Tier: string(p.Tier), FetchError: p.Error}
		if v.URL == "" {
			v.URL = p.Path
		}
		if pg := p.Page; pg != nil {
			v.OrganicClicks = pg.OrganicClicks
			v.Position = pg.Position
			if s := pg.Site; s != nil {
				v.Sessions, v.BounceRate, v.Engagement, v.Revenue = s.Sessions, s.BounceRate, s.EngagementRate, s.Revenue
			}
		}
		if c := p.Content; c != nil {
			v.Title = c.Title
			v.PageType = c.PageType
			v.SchemaFound = c.StructuredData.Found
			v.SchemaMissing = c.StructuredData.Missing
			v.SchemaFlagged = c.StructuredData.Flagged
			v.Signals = signalNames(c.Signals)
			v.Excerpt = c.Text
		}
		views = append(views, v)
	}
	return marshal(views)
}

func signalNames(s []research.SignalMatch) []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Name
	}
	return out
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func marshal(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
