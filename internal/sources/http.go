package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
	"github.com/Kocoro-lab/interplay/internal/interceptors"
	"github.com/Kocoro-lab/interplay/internal/tracing"
	"go.uber.org/zap"
)

// HTTPConfig configures the data-source API client.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// HTTPClient reads rows from the data-source API:
//
//	GET {base}/v1/clients/{clientID}/{dataset}?start=YYYY-MM-DD&end=YYYY-MM-DD
//
// responding {"rows": [...]}. Transport errors and 5xx are retried with
// backoff; 4xx are returned immediately.
type HTTPClient struct {
	cfg     HTTPConfig
	http    *circuitbreaker.HTTPWrapper
	backoff Backoff
	logger  *zap.Logger
}

// NewHTTPClient builds an HTTPClient.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{
		cfg: cfg,
		http: circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: cfg.Timeout, Transport: interceptors.NewWorkflowHTTPRoundTripper(nil)},
			"sources", "data-source-api", circuitbreaker.SourceSettings(), logger),
		backoff: NewBackoff(cfg.RetryBase, cfg.MaxRetries),
		logger:  logger,
	}
}

type rowsEnvelope[T any] struct {
	Rows []T `json:"rows"`
}

func fetchRows[T any](ctx context.Context, c *HTTPClient, dataset, clientID string, r DateRange) ([]T, error) {
	u := fmt.Sprintf("%s/v1/clients/%s/%s?%s", c.cfg.BaseURL, url.PathEscape(clientID), dataset,
		url.Values{"start": {r.Start.Format(dateLayout)}, "end": {r.End.Format(dateLayout)}}.Encode())

	var out rowsEnvelope[T]
	err := c.backoff.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			c.logger.Warn("Retrying data-source fetch",
				zap.String("dataset", dataset),
				zap.String("client_id", clientID),
				zap.Int("attempt", attempt))
		}
		return c.getJSON(ctx, u, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s rows: %w", dataset, err)
	}
	return out.Rows, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.InjectTraceparent(ctx, req)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || ctx.Err() != nil {
			return permanent(err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := fmt.Errorf("non-2xx: %d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode >= 500 {
			return statusErr
		}
		return permanent(statusErr)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// FetchPaid implements Client.
func (c *HTTPClient) FetchPaid(ctx context.Context, clientID string, r DateRange) ([]PaidRow, error) {
	return fetchRows[PaidRow](ctx, c, "paid", clientID, r)
}

// FetchOrganic implements Client.
func (c *HTTPClient) FetchOrganic(ctx context.Context, clientID string, r DateRange) ([]OrganicRow, error) {
	return fetchRows[OrganicRow](ctx, c, "organic", clientID, r)
}

// FetchAnalytics implements Client.
func (c *HTTPClient) FetchAnalytics(ctx context.Context, clientID string, r DateRange) ([]AnalyticsRow, error) {
	return fetchRows[AnalyticsRow](ctx, c, "analytics", clientID, r)
}

// FetchCompetitive implements Client.
func (c *HTTPClient) FetchCompetitive(ctx context.Context, clientID string, r DateRange) ([]CompetitiveRow, error) {
	return fetchRows[CompetitiveRow](ctx, c, "competitive", clientID, r)
}
