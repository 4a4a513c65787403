package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Kocoro-lab/interplay/internal/sources"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Unifier fetches the three raw datasets and merges them.
type Unifier struct {
	source sources.Client
	logger *zap.Logger
}

// NewUnifier creates a Unifier over a data-source client.
func NewUnifier(source sources.Client, logger *zap.Logger) *Unifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Unifier{source: source, logger: logger}
}

// Build fetches paid, organic and analytics rows concurrently and merges
// them. The first fetch error cancels the others and fails the build with
// ErrDataUnavailable; no partial dataset is returned.
func (u *Unifier) Build(ctx context.Context, clientID string, r DateRange) (*InterplayDataset, error) {
	start := time.Now()
	var (
		paid      []sources.PaidRow
		organic   []sources.OrganicRow
		analytics []sources.AnalyticsRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := u.source.FetchPaid(gctx, clientID, r)
		if err != nil {
			return fmt.Errorf("%w: paid search: %w", ErrDataUnavailable, err)
		}
		paid = rows
		return nil
	})
	g.Go(func() error {
		rows, err := u.source.FetchOrganic(gctx, clientID, r)
		if err != nil {
			return fmt.Errorf("%w: organic search: %w", ErrDataUnavailable, err)
		}
		organic = rows
		return nil
	})
	g.Go(func() error {
		rows, err := u.source.FetchAnalytics(gctx, clientID, r)
		if err != nil {
			return fmt.Errorf("%w: site analytics: %w", ErrDataUnavailable, err)
		}
		analytics = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := Merge(clientID, r, paid, organic, analytics)
	u.logger.Info("Dataset unified",
		zap.String("client_id", clientID),
		zap.String("date_range", r.String()),
		zap.Int("paid_rows", len(paid)),
		zap.Int("organic_rows", len(organic)),
		zap.Int("analytics_rows", len(analytics)),
		zap.Int("queries", ds.Summary.QueryCount),
		zap.Int("pages", ds.Summary.PageCount),
		zap.Duration("duration", time.Since(start)),
	)
	return ds, nil
}

// queryAcc holds running sums for one query until ratios are derived.
type queryAcc struct {
	rec           *QueryRecord
	positionSum   float64 // position * impressions
	positionN     int
	rawPosition   float64 // plain sum, used when no impressions were reported
	urlClicks     map[string]int64
	urlFirstIndex map[string]int
}

type pageAcc struct {
	m             SiteMetrics
	engagementSum float64
	bounceSum     float64
	durationSum   float64
	rows          int
	plainEngage   float64
	plainBounce   float64
	plainDuration float64
}

// Merge combines raw rows into a dataset. Numeric fields are summed per
// normalized query and ratios are derived once from the sums.
func Merge(clientID string, r DateRange, paid []sources.PaidRow, organic []sources.OrganicRow, analytics []sources.AnalyticsRow) *InterplayDataset {
	accs := make(map[string]*queryAcc)
	get := func(q string) *queryAcc {
		a, ok := accs[q]
		if !ok {
			a = &queryAcc{rec: &QueryRecord{Query: q}}
			accs[q] = a
		}
		return a
	}

	for _, row := range paid {
		key := NormalizeQuery(row.Query)
		if key == "" {
			continue
		}
		a := get(key)
		if a.rec.Paid == nil {
			a.rec.Paid = &PaidMetrics{}
		}
		p := a.rec.Paid
		p.Spend += maxf(row.Spend)
		p.Clicks += max0(row.Clicks)
		p.Impressions += max0(row.Impressions)
		p.Conversions += maxf(row.Conversions)
		p.ConversionValue += maxf(row.ConversionValue)
	}

	for i, row := range organic {
		key := NormalizeQuery(row.Query)
		if key == "" {
			continue
		}
		a := get(key)
		if a.rec.Organic == nil {
			a.rec.Organic = &OrganicMetrics{}
			a.urlClicks = make(map[string]int64)
			a.urlFirstIndex = make(map[string]int)
		}
		o := a.rec.Organic
		impressions := max0(row.Impressions)
		o.Clicks += max0(row.Clicks)
		o.Impressions += impressions
		if pos := maxf(row.Position); pos > 0 {
			a.positionSum += pos * float64(impressions)
			a.rawPosition += pos
			a.positionN++
		}
		if row.URL != "" {
			if _, seen := a.urlFirstIndex[row.URL]; !seen {
				a.urlFirstIndex[row.URL] = i
			}
			a.urlClicks[row.URL] += max0(row.Clicks)
		}
	}

	pages := make(map[string]*pageAcc)
	for _, row := range analytics {
		path := NormalizePath(row.URL)
		pa, ok := pages[path]
		if !ok {
			pa = &pageAcc{}
			pages[path] = pa
		}
		sessions := max0(row.Sessions)
		pa.m.Sessions += sessions
		pa.m.Revenue += maxf(row.Revenue)
		pa.m.Conversions += maxf(row.Conversions)
		pa.engagementSum += maxf(row.EngagementRate) * float64(sessions)
		pa.bounceSum += maxf(row.BounceRate) * float64(sessions)
		pa.durationSum += maxf(row.AvgSessionDuration) * float64(sessions)
		pa.plainEngage += maxf(row.EngagementRate)
		pa.plainBounce += maxf(row.BounceRate)
		pa.plainDuration += maxf(row.AvgSessionDuration)
		pa.rows++
	}

	ds := &InterplayDataset{
		ClientID:  clientID,
		DateRange: r,
		Pages:     make(map[string]*SiteMetrics, len(pages)),
	}
	paths := make([]string, 0, len(pages))
	for path := range pages {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		pa := pages[path]
		m := pa.m
		if m.Sessions > 0 {
			s := float64(m.Sessions)
			m.EngagementRate = pa.engagementSum / s
			m.BounceRate = pa.bounceSum / s
			m.AvgSessionDuration = pa.durationSum / s
		} else if pa.rows > 0 {
			n := float64(pa.rows)
			m.EngagementRate = pa.plainEngage / n
			m.BounceRate = pa.plainBounce / n
			m.AvgSessionDuration = pa.plainDuration / n
		}
		ds.Pages[path] = &m
		ds.Summary.TotalRevenue += m.Revenue
	}

	ds.Records = make([]*QueryRecord, 0, len(accs))
	for _, a := range accs {
		rec := a.rec
		if p := rec.Paid; p != nil {
			p.CPC = safeDiv(p.Spend, float64(p.Clicks))
			p.ROAS = safeDiv(p.ConversionValue, p.Spend)
			ds.Summary.TotalSpend += p.Spend
			ds.Summary.TotalConversionValue += p.ConversionValue
		}
		if o := rec.Organic; o != nil {
			o.CTR = safeDiv(float64(o.Clicks), float64(o.Impressions))
			if o.Impressions > 0 && a.positionSum > 0 {
				o.Position = a.positionSum / float64(o.Impressions)
			} else if a.positionN > 0 {
				o.Position = a.rawPosition / float64(a.positionN)
			}
			o.URL = topURL(a)
			ds.Summary.TotalOrganicClicks += o.Clicks
			if o.URL != "" {
				if site, ok := ds.Pages[NormalizePath(o.URL)]; ok {
					cp := *site
					rec.Site = &cp
				}
			}
		}
		switch {
		case rec.Paid != nil && rec.Organic != nil:
			ds.Summary.Overlap++
		case rec.Paid != nil:
			ds.Summary.PaidOnly++
		case rec.Organic != nil:
			ds.Summary.OrganicOnly++
		}
		ds.Records = append(ds.Records, rec)
	}
	sort.Slice(ds.Records, func(i, j int) bool { return ds.Records[i].Query < ds.Records[j].Query })
	ds.Summary.QueryCount = len(ds.Records)
	ds.Summary.PageCount = len(ds.Pages)
	return ds
}

// topURL picks the URL with the most organic clicks, earliest seen on ties.
func topURL(a *queryAcc) string {
	best, bestClicks, bestIdx := "", int64(-1), 0
	for u, clicks := range a.urlClicks {
		idx := a.urlFirstIndex[u]
		if clicks > bestClicks || (clicks == bestClicks && idx < bestIdx) {
			best, bestClicks, bestIdx = u, clicks, idx
		}
	}
	return best
}
