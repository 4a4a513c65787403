// Package llm is the text-generation boundary of the pipeline: the
// TextGenerator collaborator and its HTTP and Gemini implementations, plus
// the response handling every model stage shares (JSON extraction, schema
// validation and the three-way stage result).
package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrModelCall means the model provider could not produce a response.
var ErrModelCall = errors.New("model call failed")

// Request is one prompt to the model.
type Request struct {
	AgentID     string  `json:"agent_id"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	// JSON asks providers that support it for a JSON-only response.
	JSON bool `json:"json,omitempty"`
}

// Response is the raw model text plus provider accounting.
type Response struct {
	Text       string `json:"text"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// TextGenerator produces text for a prompt. Implementations wrap provider
// failures in ErrModelCall.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Scripted answers by agent ID from a fixed table and records every request.
// It backs offline runs and tests.
type Scripted struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []Request
}

// NewScripted returns a Scripted generator with canned responses keyed by
// agent ID.
func NewScripted(responses map[string]string) *Scripted {
	return &Scripted{responses: responses, errs: make(map[string]error)}
}

// Fail makes every call for agentID return err wrapped in ErrModelCall.
func (s *Scripted) Fail(agentID string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[agentID] = err
	return s
}

// Generate returns the canned response for req.AgentID.
func (s *Scripted) Generate(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrModelCall, err)
	}
	if err, ok := s.errs[req.AgentID]; ok {
		return nil, errors.Join(ErrModelCall, err)
	}
	text, ok := s.responses[req.AgentID]
	if !ok {
		return nil, errors.Join(ErrModelCall, errors.New("no scripted response for "+req.AgentID))
	}
	return &Response{Text: text, Model: "scripted"}, nil
}

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
