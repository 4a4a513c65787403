// Package sources defines the raw data-source collaborator: per-day rows
// for paid search, organic search and site analytics keyed by client and
// date range, plus paid-search competitive rows used for enrichment.
package sources

import (
	"context"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns the range of the n full days ending yesterday.
func LastDays(now time.Time, n int) DateRange {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// Days is the number of calendar days covered.
func (d DateRange) Days() int {
	return int(d.End.Sub(d.Start).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the range.
func (d DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(d.Start) && !day.After(d.End)
}

func (d DateRange) String() string {
	return fmt.Sprintf("%s..%s", d.Start.Format(dateLayout), d.End.Format(dateLayout))
}

// PaidRow is one day of paid-search performance for one query.
type PaidRow struct {
	Date            time.Time `json:"date"`
	Query           string    `json:"query"`
	Campaign        string    `json:"campaign,omitempty"`
	Spend           float64   `json:"spend"`
	Clicks          int64     `json:"clicks"`
	Impressions     int64     `json:"impressions"`
	Conversions     float64   `json:"conversions"`
	ConversionValue float64   `json:"conversion_value"`
}

// OrganicRow is one day of organic-search performance for one query.
type OrganicRow struct {
	Date        time.Time `json:"date"`
	Query       string    `json:"query"`
	URL         string    `json:"url"`
	Position    float64   `json:"position"`
	Clicks      int64     `json:"clicks"`
	Impressions int64     `json:"impressions"`
}

// AnalyticsRow is one day of on-site analytics for one landing page.
type AnalyticsRow struct {
	Date               time.Time `json:"date"`
	URL                string    `json:"url"`
	Sessions           int64     `json:"sessions"`
	Revenue            float64   `json:"revenue"`
	Conversions        float64   `json:"conversions"`
	EngagementRate     float64   `json:"engagement_rate"`
	BounceRate         float64   `json:"bounce_rate"`
	AvgSessionDuration float64   `json:"avg_session_duration"`
}

// CompetitiveRow carries auction-insight style metrics for one query.
// Shares are percentages in [0, 100].
type CompetitiveRow struct {
	Query           string  `json:"query"`
	ImpressionShare float64 `json:"impression_share"`
	LostISRank      float64 `json:"lost_is_rank"`
	LostISBudget    float64 `json:"lost_is_budget"`
}

// Client fetches raw rows for one client and date range.
type Client interface {
	FetchPaid(ctx context.Context, clientID string, r DateRange) ([]PaidRow, error)
	FetchOrganic(ctx context.Context, clientID string, r DateRange) ([]OrganicRow, error)
	FetchAnalytics(ctx context.Context, clientID string, r DateRange) ([]AnalyticsRow, error)
	FetchCompetitive(ctx context.Context, clientID string, r DateRange) ([]CompetitiveRow, error)
}
