package research

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	minFetchTimeout = 5 * time.Second
	maxFetchTimeout = 15 * time.Second
)

// CompetitiveSource supplies auction metrics per query.
type CompetitiveSource interface {
	FetchCompetitive(ctx context.Context, clientID string, r sources.DateRange) ([]sources.CompetitiveRow, error)
}

// Options tune the Researcher beyond what the bundle controls.
type Options struct {
	CacheTTL     time.Duration
	PerHostRPS   float64
	PerHostBurst int
}

// Researcher enriches a Scout selection.
type Researcher struct {
	fetcher     PageFetcher
	cache       PageCache
	competitive CompetitiveSource
	opts        Options
	logger      *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Researcher. cache and competitive may be nil.
func New(fetcher PageFetcher, cache PageCache, competitive CompetitiveSource, opts Options, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.PerHostRPS <= 0 {
		opts.PerHostRPS = 2
	}
	if opts.PerHostBurst <= 0 {
		opts.PerHostBurst = 2
	}
	return &Researcher{
		fetcher:     fetcher,
		cache:       cache,
		competitive: competitive,
		opts:        opts,
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// FetchTimeout returns the per-fetch timeout for cfg, clamped to 5..15s.
func FetchTimeout(cfg skills.ResearchConfig) time.Duration {
	d := time.Duration(cfg.FetchTimeoutMs) * time.Millisecond
	if d <= 0 {
		d = 10 * time.Second
	}
	if d < minFetchTimeout {
		d = minFetchTimeout
	}
	if d > maxFetchTimeout {
		d = maxFetchTimeout
	}
	return d
}

// Enrich fetches the selected pages and enriches the selected keywords.
// Page failures are recorded per page and never fail the call; a missing
// competitive source is tolerated.
func (r *Researcher) Enrich(ctx context.Context, ds *dataset.InterplayDataset, sel scout.Selection, b *skills.Bundle) (*Enrichment, error) {
	if ds == nil || b == nil {
		return nil, errors.New("research: dataset and bundle are required")
	}
	out := &Enrichment{}

	competitive := r.loadCompetitive(ctx, ds)
	out.CompetitiveAvailable = competitive != nil
	out.Keywords, out.Boosted = enrichKeywords(sel.Keywords, competitive, b.Research.Boosts)

	out.Pages = r.fetchPages(ctx, sel.Pages, b.Research)
	for _, p := range out.Pages {
		out.Stats.Attempted++
		switch {
		case p.Content == nil:
			out.Stats.Failed++
		case p.FromCache:
			out.Stats.Cached++
			out.Stats.Succeeded++
		default:
			out.Stats.Succeeded++
		}
	}

	r.logger.Info("Research complete",
		zap.String("client_id", ds.ClientID),
		zap.Int("keywords", len(out.Keywords)),
		zap.Int("boosted", out.Boosted),
		zap.Int("pages_attempted", out.Stats.Attempted),
		zap.Int("pages_failed", out.Stats.Failed),
		zap.Bool("competitive", out.CompetitiveAvailable),
	)
	return out, nil
}

func (r *Researcher) loadCompetitive(ctx context.Context, ds *dataset.InterplayDataset) map[string]sources.CompetitiveRow {
	if r.competitive == nil {
		return nil
	}
	rows, err := r.competitive.FetchCompetitive(ctx, ds.ClientID, ds.DateRange)
	if err != nil {
		r.logger.Warn("Competitive metrics unavailable", zap.String("client_id", ds.ClientID), zap.Error(err))
		return nil
	}
	m := make(map[string]sources.CompetitiveRow, len(rows))
	for _, row := range rows {
		if key := dataset.NormalizeQuery(row.Query); key != "" {
			m[key] = row
		}
	}
	return m
}

// enrichKeywords copies each candidate's record, attaches competitive
// metrics and applies boosts multiplicatively.
func enrichKeywords(cands []scout.Candidate, competitive map[string]sources.CompetitiveRow, boosts []skills.Boost) ([]scout.Candidate, int) {
	out := make([]scout.Candidate, 0, len(cands))
	boosted := 0
	for _, c := range cands {
		rec := dataset.QueryRecord{Query: c.Query}
		if c.Record != nil {
			rec = *c.Record
			rec.BoostReasons = append([]string(nil), c.Record.BoostReasons...)
		}
		if row, ok := competitive[rec.Query]; ok {
			rec.Competitive = &dataset.CompetitiveMetrics{
				ImpressionShare: row.ImpressionShare,
				LostISRank:      row.LostISRank,
				LostISBudget:    row.LostISBudget,
			}
		}
		boost := 1.0
		for _, bst := range boosts {
			if bst.Factor > 0 && skills.AllHold(bst.Conditions, rec.Metric) {
				boost *= bst.Factor
				reason := bst.Reason
				if reason == "" {
					reason = bst.Name
				}
				rec.BoostReasons = append(rec.BoostReasons, reason)
			}
		}
		rec.PriorityBoost = boost
		if boost != 1 {
			boosted++
		}
		c.Record = &rec
		out = append(out, c)
	}
	return out, boosted
}

func (r *Researcher) fetchPages(ctx context.Context, pages []scout.PageCandidate, cfg skills.ResearchConfig) []PageResult {
	results := make([]PageResult, len(pages))
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	timeout := FetchTimeout(cfg)
	sem := semaphore.NewWeighted(int64(concurrency))

	var wg sync.WaitGroup
	for i, pc := range pages {
		results[i] = PageResult{PageCandidate: pc}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Error = err.Error()
			continue
		}
		wg.Add(1)
		go func(res *PageResult) {
			defer wg.Done()
			defer sem.Release(1)
			r.fetchOne(ctx, res, timeout, cfg)
		}(&results[i])
	}
	wg.Wait()
	return results
}

func (r *Researcher) fetchOne(ctx context.Context, res *PageResult, timeout time.Duration, cfg skills.ResearchConfig) {
	start := time.Now()
	defer func() { res.DurationMs = time.Since(start).Milliseconds() }()

	u, err := url.Parse(res.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		res.Error = fmt.Sprintf("not an absolute http(s) URL: %q", res.URL)
		return
	}

	var body []byte
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, res.URL); ok {
			body = cached
			res.FromCache = true
		}
	}
	if body == nil {
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := r.limiter(u.Host).Wait(fctx); err != nil {
			res.Error = fmt.Sprintf("rate limit wait: %v", err)
			return
		}
		body, err = r.fetcher.Fetch(fctx, res.URL)
		if err != nil {
			res.Error = err.Error()
			r.logger.Debug("Page fetch failed", zap.String("url", res.URL), zap.Error(err))
			return
		}
		if r.cache != nil {
			r.cache.Set(ctx, res.URL, body, r.opts.CacheTTL)
		}
	}

	ex, err := extract(body, cfg.MaxContentChars)
	if err != nil {
		res.Error = fmt.Sprintf("parse html: %v", err)
		return
	}
	res.Content = analyze(ex, res.URL, cfg)
}

func (r *Researcher) limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.opts.PerHostRPS), r.opts.PerHostBurst)
		r.limiters[host] = l
	}
	return l
}
