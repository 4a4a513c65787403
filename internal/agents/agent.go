package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kocoro-lab/interplay/internal/budget"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"go.uber.org/zap"
)

// Options tune the model call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// DefaultOptions are used when zero Options are passed.
var DefaultOptions = Options{MaxTokens: 4096, Temperature: 0.2}

// Agent is one specialist.
type Agent struct {
	kind   Kind
	gen    llm.TextGenerator
	opts   Options
	logger *zap.Logger
}

// NewSEM returns the paid-search specialist.
func NewSEM(gen llm.TextGenerator, opts Options, logger *zap.Logger) *Agent {
	return newAgent(KindSEM, gen, opts, logger)
}

// NewSEO returns the organic-search specialist.
func NewSEO(gen llm.TextGenerator, opts Options, logger *zap.Logger) *Agent {
	return newAgent(KindSEO, gen, opts, logger)
}

func newAgent(kind Kind, gen llm.TextGenerator, opts Options, logger *zap.Logger) *Agent {
	if opts == (Options{}) {
		opts = DefaultOptions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{kind: kind, gen: gen, opts: opts, logger: logger.With(zap.String("agent", string(kind)))}
}

// Kind of the agent.
func (a *Agent) Kind() Kind { return a.kind }

// Prompt budgets the input and assembles the prompts without calling the
// model. The combined prompt must fit the bundle's ceiling.
func (a *Agent) Prompt(in Input) (system, user string, payload budget.Payload, err error) {
	if in.Bundle == nil {
		return "", "", budget.Payload{}, errors.New("agent input has no skill bundle")
	}
	payload = budget.Prepare(in.Keywords, in.Pages, in.Bundle.Budget)
	system, user = buildPrompt(a.kind, in, payload)
	if err := budget.CheckCeiling(system+"\n"+user, in.Bundle.Budget.PromptCeiling); err != nil {
		return "", "", payload, fmt.Errorf("%s prompt: %w", a.kind, err)
	}
	return system, user, payload, nil
}

// Analyze runs the specialist. A valid answer with no actions is a
// StatusEmpty result, not an error.
func (a *Agent) Analyze(ctx context.Context, in Input) (*Result, error) {
	system, user, payload, err := a.Prompt(in)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: a.kind, Status: llm.StatusOK, Budget: payload}
	res.Usage.EstimatedPromptTokens = budget.EstimateTokens(system) + budget.EstimateTokens(user)

	start := time.Now()
	resp, err := a.gen.Generate(ctx, llm.Request{
		AgentID:     a.kind.AgentID(),
		System:      system,
		Prompt:      user,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
		JSON:        true,
	})
	res.Usage.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		if !errors.Is(err, llm.ErrModelCall) {
			err = fmt.Errorf("%w: %w", llm.ErrModelCall, err)
		}
		return nil, fmt.Errorf("%s: %w", a.kind, err)
	}
	res.Usage.TokensUsed = resp.TokensUsed
	res.Usage.Model = resp.Model

	raw, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		a.logger.Error("Specialist response has no JSON",
			zap.String("preview", llm.Preview(resp.Text)))
		return nil, fmt.Errorf("%s: %w", a.kind, err)
	}
	raw = aliasItems(raw)

	schema := semSchema
	if a.kind == KindSEO {
		schema = seoSchema
	}
	var sem SEMOutput
	var seo SEOOutput
	var target any = &sem
	if a.kind == KindSEO {
		target = &seo
	}
	if err := llm.Validate(string(a.kind), schema, raw, target); err != nil {
		var ve *llm.ValidationError
		if errors.As(err, &ve) && ve.OnlyEmpty("actions") {
			a.logger.Warn("Specialist returned no actions")
			res.Status = llm.StatusEmpty
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s agent returned no actions", a.kind))
			a.setOutput(res, &sem, &seo)
			return res, nil
		}
		if errors.As(err, &ve) {
			a.logger.Error("Specialist response failed validation",
				zap.Any("issues", ve.Issues),
				zap.String("preview", llm.Preview(string(raw))))
		}
		return nil, fmt.Errorf("%s: %w", a.kind, err)
	}

	filter := in.Bundle.Output.SEM
	if a.kind == KindSEO {
		filter = in.Bundle.Output.SEO
	}
	before := 0
	if a.kind == KindSEM {
		before = len(sem.Actions)
		sem.Actions, res.Violations = applyFilter(string(a.kind), sem.Actions, SEMAction.Text, filter)
	} else {
		before = len(seo.Actions)
		seo.Actions, res.Violations = applyFilter(string(a.kind), seo.Actions, SEOAction.Text, filter)
	}
	a.setOutput(res, &sem, &seo)

	if res.ActionCount() == 0 {
		res.Status = llm.StatusEmpty
		res.Warnings = append(res.Warnings, fmt.Sprintf("all %d %s actions were removed by the output filter", before, a.kind))
	}
	if len(res.Violations) > 0 {
		a.logger.Warn("Specialist actions excluded by bundle filter", zap.Int("count", len(res.Violations)))
	}
	return res, nil
}

func (a *Agent) setOutput(res *Result, sem *SEMOutput, seo *SEOOutput) {
	if a.kind == KindSEM {
		if sem.Actions == nil {
			sem.Actions = []SEMAction{}
		}
		res.SEM = sem
		return
	}
	if seo.Actions == nil {
		seo.Actions = []SEOAction{}
	}
	res.SEO = seo
}

// aliasItems accepts "items" as the action list when "actions" is absent;
// a bare array is treated as the action list itself.
func aliasItems(raw json.RawMessage) json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if out, err := json.Marshal(map[string]any{"actions": arr}); err == nil {
			return out
		}
		return raw
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	if _, ok := obj["actions"]; ok {
		return raw
	}
	items, ok := obj["items"]
	if !ok {
		return raw
	}
	obj["actions"] = items
	delete(obj, "items")
	out, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return out
}
