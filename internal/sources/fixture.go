package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Fixture is an in-memory Client, used for local runs and tests. Rows
// outside the requested range are filtered out; an Err set for a dataset
// is returned instead of its rows.
type Fixture struct {
	mu          sync.RWMutex
	Paid        []PaidRow        `json:"paid"`
	Organic     []OrganicRow     `json:"organic"`
	Analytics   []AnalyticsRow   `json:"analytics"`
	Competitive []CompetitiveRow `json:"competitive"`
	Errs        map[string]error `json:"-"`
}

// LoadFixture reads a Fixture from a JSON file with "paid", "organic",
// "analytics" and "competitive" arrays.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Fail makes every fetch of dataset ("paid", "organic", "analytics",
// "competitive") return err.
func (f *Fixture) Fail(dataset string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errs == nil {
		f.Errs = make(map[string]error)
	}
	f.Errs[dataset] = err
}

func (f *Fixture) err(dataset string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Errs[dataset]
}

// FetchPaid implements Client.
func (f *Fixture) FetchPaid(ctx context.Context, _ string, r DateRange) ([]PaidRow, error) {
	if err := f.err("paid"); err != nil {
		return nil, err
	}
	var out []PaidRow
	for _, row := range f.Paid {
		if row.Date.IsZero() || r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out, ctx.Err()
}

// FetchOrganic implements Client.
func (f *Fixture) FetchOrganic(ctx context.Context, _ string, r DateRange) ([]OrganicRow, error) {
	if err := f.err("organic"); err != nil {
		return nil, err
	}
	var out []OrganicRow
	for _, row := range f.Organic {
		if row.Date.IsZero() || r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out, ctx.Err()
}

// FetchAnalytics implements Client.
func (f *Fixture) FetchAnalytics(ctx context.Context, _ string, r DateRange) ([]AnalyticsRow, error) {
	if err := f.err("analytics"); err != nil {
		return nil, err
	}
	var out []AnalyticsRow
	for _, row := range f.Analytics {
		if row.Date.IsZero() || r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out, ctx.Err()
}

// FetchCompetitive implements Client.
func (f *Fixture) FetchCompetitive(ctx context.Context, _ string, _ DateRange) ([]CompetitiveRow, error) {
	if err := f.err("competitive"); err != nil {
		return nil, err
	}
	return append([]CompetitiveRow(nil), f.Competitive...), ctx.Err()
}
