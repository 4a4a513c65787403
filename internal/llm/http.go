package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
	"github.com/Kocoro-lab/interplay/internal/interceptors"
	"github.com/Kocoro-lab/interplay/internal/tracing"
	"go.uber.org/zap"
)

// HTTPGenerator calls the llm-service agent endpoint:
//
//	POST {base}/agent/query
//
// The service picks the model; the request carries the prompt, the system
// prompt and sampling limits.
type HTTPGenerator struct {
	baseURL string
	http    *circuitbreaker.HTTPWrapper
	logger  *zap.Logger
}

// NewHTTPGenerator builds a generator for the llm-service at baseURL.
func NewHTTPGenerator(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: timeout, Transport: interceptors.NewWorkflowHTTPRoundTripper(nil)},
			"llm", "llm-service", circuitbreaker.LLMSettings(), logger),
		logger: logger,
	}
}

type agentQueryRequest struct {
	Query          string         `json:"query"`
	AgentID        string         `json:"agent_id"`
	Context        map[string]any `json:"context"`
	SessionContext map[string]any `json:"session_context,omitempty"`
}

type agentQueryResponse struct {
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
	Error      string `json:"error"`
}

// Generate posts the prompt and returns the model text.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	body := agentQueryRequest{
		Query:   req.Prompt,
		AgentID: req.AgentID,
		Context: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		body.Context["max_tokens"] = req.MaxTokens
	}
	if req.JSON {
		body.Context["response_format"] = "json"
	}
	if req.System != "" {
		body.SessionContext = map[string]any{"system_prompt": req.System}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/agent/query", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Agent-ID", req.AgentID)
	tracing.InjectTraceparent(ctx, httpReq)

	start := time.Now()
	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: llm-service call: %w", ErrModelCall, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read llm-service response: %w", ErrModelCall, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from llm-service: %s", ErrModelCall, resp.StatusCode, Preview(string(raw)))
	}

	var out agentQueryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse llm-service response: %w", ErrModelCall, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "success=false"
		}
		return nil, fmt.Errorf("%w: llm-service: %s", ErrModelCall, msg)
	}

	g.logger.Debug("Model call completed",
		zap.String("agent_id", req.AgentID),
		zap.String("model", out.ModelUsed),
		zap.Int("tokens_used", out.TokensUsed),
		zap.Duration("duration", time.Since(start)))
	return &Response{Text: out.Response, Model: out.ModelUsed, TokensUsed: out.TokensUsed}, nil
}
