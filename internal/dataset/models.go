// Package dataset holds the unified per-query data model and the Unifier
// that builds it from the three raw sources.
package dataset

import (
	"errors"
	"sort"

	"github.com/Kocoro-lab/interplay/internal/sources"
)

// ErrDataUnavailable means a required source fetch failed; the run cannot
// proceed without it.
var ErrDataUnavailable = errors.New("data unavailable")

// DateRange is the inclusive day range of a dataset.
type DateRange = sources.DateRange

// PaidMetrics are summed paid-search figures with ratios derived from the sums.
type PaidMetrics struct {
	Spend           float64 `json:"spend"`
	Clicks          int64   `json:"clicks"`
	Impressions     int64   `json:"impressions"`
	CPC             float64 `json:"cpc"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	ROAS            float64 `json:"roas"`
}

// OrganicMetrics are summed organic figures. Position is impression-weighted.
type OrganicMetrics struct {
	Position    float64 `json:"position"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CTR         float64 `json:"ctr"`
	URL         string  `json:"url,omitempty"`
}

// SiteMetrics are landing-page analytics. Rates are session-weighted.
type SiteMetrics struct {
	Sessions           int64   `json:"sessions"`
	Revenue            float64 `json:"revenue"`
	Conversions        float64 `json:"conversions"`
	EngagementRate     float64 `json:"engagement_rate"`
	BounceRate         float64 `json:"bounce_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
}

// CompetitiveMetrics are attached by enrichment. Shares are percentages.
type CompetitiveMetrics struct {
	ImpressionShare float64 `json:"impression_share"`
	LostISRank      float64 `json:"lost_is_rank"`
	LostISBudget    float64 `json:"lost_is_budget"`
}

// QueryRecord is everything known about one normalized query.
type QueryRecord struct {
	Query         string              `json:"query"`
	Paid          *PaidMetrics        `json:"paid,omitempty"`
	Organic       *OrganicMetrics     `json:"organic,omitempty"`
	Site          *SiteMetrics        `json:"site,omitempty"`
	Competitive   *CompetitiveMetrics `json:"competitive,omitempty"`
	PriorityBoost float64             `json:"priority_boost,omitempty"`
	BoostReasons  []string            `json:"boost_reasons,omitempty"`
}

// Summary aggregates the whole dataset.
type Summary struct {
	TotalSpend           float64 `json:"total_spend"`
	TotalConversionValue float64 `json:"total_conversion_value"`
	TotalRevenue         float64 `json:"total_revenue"`
	TotalOrganicClicks   int64   `json:"total_organic_clicks"`
	QueryCount           int     `json:"query_count"`
	PaidOnly             int     `json:"paid_only"`
	OrganicOnly          int     `json:"organic_only"`
	Overlap              int     `json:"overlap"`
	PageCount            int     `json:"page_count"`
}

// InterplayDataset is the unified input of a run. Records are sorted by
// query so the dataset serializes deterministically.
type InterplayDataset struct {
	ClientID  string                  `json:"client_id"`
	DateRange DateRange               `json:"date_range"`
	Records   []*QueryRecord          `json:"records"`
	Pages     map[string]*SiteMetrics `json:"pages"`
	Summary   Summary                 `json:"summary"`
}

// Record returns the record for query, normalizing it first.
func (d *InterplayDataset) Record(query string) *QueryRecord {
	key := NormalizeQuery(query)
	i := sort.Search(len(d.Records), func(i int) bool { return d.Records[i].Query >= key })
	if i < len(d.Records) && d.Records[i].Query == key {
		return d.Records[i]
	}
	return nil
}
