package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
	"go.uber.org/zap"
)

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 2 << 20

// PageFetcher returns the raw HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPPageFetcher fetches pages over HTTP through a circuit breaker.
type HTTPPageFetcher struct {
	http      *circuitbreaker.HTTPWrapper
	userAgent string
}

// NewHTTPPageFetcher creates a fetcher. Per-request deadlines come from the
// caller's context.
func NewHTTPPageFetcher(userAgent string, logger *zap.Logger) *HTTPPageFetcher {
	if userAgent == "" {
		userAgent = "InterplayResearcher/1.0 (+https://github.com/Kocoro-lab/interplay)"
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
	return &HTTPPageFetcher{
		http:      circuitbreaker.NewHTTPWrapper(client, "pages", "client-sites", circuitbreaker.PageSettings(), logger),
		userAgent: userAgent,
	}
}

// Fetch implements PageFetcher. Non-2xx responses are errors.
func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
