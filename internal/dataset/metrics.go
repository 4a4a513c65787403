package dataset

import "math"

// MetricNames is the catalogue rule conditions may reference. Metrics of an
// absent block (no paid data, no organic data) are unresolvable, so a
// condition on them never holds; has_* flags always resolve.
var MetricNames = []string{
	"spend", "clicks", "impressions", "cpc", "conversions", "conversion_value", "roas",
	"organic_position", "organic_clicks", "organic_impressions", "organic_ctr",
	"sessions", "revenue", "site_conversions", "engagement_rate", "bounce_rate", "avg_session_duration",
	"impression_share", "lost_is_rank", "lost_is_budget",
	"has_paid", "has_organic", "has_site", "priority_boost", "total_clicks",
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Metric resolves a catalogue metric for the record.
func (r *QueryRecord) Metric(name string) (float64, bool) {
	switch name {
	case "has_paid":
		return flag(r.Paid != nil), true
	case "has_organic":
		return flag(r.Organic != nil), true
	case "has_site":
		return flag(r.Site != nil), true
	case "priority_boost":
		if r.PriorityBoost == 0 {
			return 1, true
		}
		return r.PriorityBoost, true
	case "total_clicks":
		var n int64
		if r.Paid != nil {
			n += r.Paid.Clicks
		}
		if r.Organic != nil {
			n += r.Organic.Clicks
		}
		return float64(n), true
	}
	if v, ok := paidMetric(r.Paid, name); ok {
		return v, true
	}
	if v, ok := organicMetric(r.Organic, name); ok {
		return v, true
	}
	if v, ok := siteMetric(r.Site, name); ok {
		return v, true
	}
	if c := r.Competitive; c != nil {
		switch name {
		case "impression_share":
			return c.ImpressionShare, true
		case "lost_is_rank":
			return c.LostISRank, true
		case "lost_is_budget":
			return c.LostISBudget, true
		}
	}
	return 0, false
}

func paidMetric(p *PaidMetrics, name string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	switch name {
	case "spend":
		return p.Spend, true
	case "clicks":
		return float64(p.Clicks), true
	case "impressions":
		return float64(p.Impressions), true
	case "cpc":
		return p.CPC, true
	case "conversions":
		return p.Conversions, true
	case "conversion_value":
		return p.ConversionValue, true
	case "roas":
		return p.ROAS, true
	}
	return 0, false
}

func organicMetric(o *OrganicMetrics, name string) (float64, bool) {
	if o == nil {
		return 0, false
	}
	switch name {
	case "organic_position":
		return o.Position, true
	case "organic_clicks":
		return float64(o.Clicks), true
	case "organic_impressions":
		return float64(o.Impressions), true
	case "organic_ctr":
		return o.CTR, true
	}
	return 0, false
}

func siteMetric(s *SiteMetrics, name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	switch name {
	case "sessions":
		return float64(s.Sessions), true
	case "revenue":
		return s.Revenue, true
	case "site_conversions":
		return s.Conversions, true
	case "engagement_rate":
		return s.EngagementRate, true
	case "bounce_rate":
		return s.BounceRate, true
	case "avg_session_duration":
		return s.AvgSessionDuration, true
	}
	return 0, false
}

// PageView is one landing page with the organic and paid figures of the
// queries that land on it.
type PageView struct {
	Path               string       `json:"path"`
	URL                string       `json:"url"`
	Site               *SiteMetrics `json:"site,omitempty"`
	OrganicClicks      int64        `json:"organic_clicks"`
	OrganicImpressions int64        `json:"organic_impressions"`
	Position           float64      `json:"position"`
	Spend              float64      `json:"spend"`
	Conversions        float64      `json:"conversions"`
	Queries            []string     `json:"queries"`
}

// Metric resolves a catalogue metric for the page. Paid and organic names
// refer to the sums over the page's queries.
func (p *PageView) Metric(name string) (float64, bool) {
	switch name {
	case "organic_clicks":
		return float64(p.OrganicClicks), true
	case "organic_impressions":
		return float64(p.OrganicImpressions), true
	case "organic_position":
		return p.Position, p.OrganicImpressions > 0 || p.Position > 0
	case "organic_ctr":
		if p.OrganicImpressions == 0 {
			return 0, true
		}
		return float64(p.OrganicClicks) / float64(p.OrganicImpressions), true
	case "spend":
		return p.Spend, true
	case "conversions":
		return p.Conversions, true
	case "has_site":
		return flag(p.Site != nil), true
	case "query_count":
		return float64(len(p.Queries)), true
	}
	return siteMetric(p.Site, name)
}

// PageViews groups records by the path of their organic URL, one view per
// path, sorted by path.
func (d *InterplayDataset) PageViews() []*PageView {
	byPath := make(map[string]*PageView)
	var order []string
	weighted := make(map[string]float64)
	for _, r := range d.Records {
		if r.Organic == nil || r.Organic.URL == "" {
			continue
		}
		path := NormalizePath(r.Organic.URL)
		pv, ok := byPath[path]
		if !ok {
			pv = &PageView{Path: path, URL: r.Organic.URL, Site: d.Pages[path]}
			byPath[path] = pv
			order = append(order, path)
		}
		pv.OrganicClicks += r.Organic.Clicks
		pv.OrganicImpressions += r.Organic.Impressions
		weighted[path] += r.Organic.Position * float64(r.Organic.Impressions)
		if r.Paid != nil {
			pv.Spend += r.Paid.Spend
			pv.Conversions += r.Paid.Conversions
		}
		pv.Queries = append(pv.Queries, r.Query)
	}
	out := make([]*PageView, 0, len(order))
	for _, path := range order {
		pv := byPath[path]
		if pv.OrganicImpressions > 0 {
			pv.Position = round(weighted[path]/float64(pv.OrganicImpressions), 2)
		}
		out = append(out, pv)
	}
	sortPages(out)
	return out
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
