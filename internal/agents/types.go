// Package agents holds the SEM and SEO specialist agents. Each turns the
// budgeted keyword and page payload plus its bundle's prompt fragments into
// one model call, validates the answer and filters it through the bundle's
// output rules.
package agents

import (
	"strings"

	"github.com/Kocoro-lab/interplay/internal/budget"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// Kind names a specialist.
type Kind string

const (
	KindSEM Kind = "sem"
	KindSEO Kind = "seo"
)

// AgentID is the identifier sent to the text generator.
func (k Kind) AgentID() string { return string(k) + "_specialist" }

// Impact levels shared by every recommendation.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// SEMAction is one paid-search recommendation.
type SEMAction struct {
	Type            string `json:"type"`
	Level           string `json:"level"`
	Keyword         string `json:"keyword,omitempty"`
	Campaign        string `json:"campaign,omitempty"`
	Action          string `json:"action"`
	Impact          string `json:"impact"`
	Effort          string `json:"effort,omitempty"`
	Rationale       string `json:"rationale"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
}

// Text is what bundle patterns are matched against.
func (a SEMAction) Text() string {
	return strings.Join([]string{a.Type, a.Keyword, a.Campaign, a.Action, a.Rationale, a.ExpectedOutcome}, " ")
}

// SEOAction is one organic-search recommendation.
type SEOAction struct {
	Type            string   `json:"type"`
	URL             string   `json:"url,omitempty"`
	Keyword         string   `json:"keyword,omitempty"`
	Condition       string   `json:"condition"`
	Recommendation  string   `json:"recommendation"`
	SpecificActions []string `json:"specific_actions,omitempty"`
	Impact          string   `json:"impact"`
	Effort          string   `json:"effort,omitempty"`
	Rationale       string   `json:"rationale"`
}

// Text is what bundle patterns are matched against.
func (a SEOAction) Text() string {
	parts := append([]string{a.Type, a.URL, a.Keyword, a.Condition, a.Recommendation, a.Rationale}, a.SpecificActions...)
	return strings.Join(parts, " ")
}

// SEMOutput is the validated SEM response.
type SEMOutput struct {
	Summary string      `json:"summary,omitempty"`
	Actions []SEMAction `json:"actions"`
}

// SEOOutput is the validated SEO response.
type SEOOutput struct {
	Summary string      `json:"summary,omitempty"`
	Actions []SEOAction `json:"actions"`
}

// Violation records upstream output that broke a bundle rule. Violations
// are kept for quality tracking and never fail a run.
type Violation struct {
	Stage   string `json:"stage"`
	RuleID  string `json:"rule_id"`
	Pattern string `json:"pattern,omitempty"`
	Snippet string `json:"snippet"`
}

// Input is everything a specialist needs. The bundle travels with the input
// so a run never looks up configuration on its own.
type Input struct {
	ClientID  string                `json:"client_id"`
	DateRange dataset.DateRange     `json:"date_range"`
	Summary   dataset.Summary       `json:"summary"`
	Bundle    *skills.Bundle        `json:"bundle"`
	Keywords  []scout.Candidate     `json:"keywords"`
	Pages     []research.PageResult `json:"pages"`
}

// Result is the three-way outcome of a specialist: a populated output with
// StatusOK, or StatusEmpty with warnings. Failures are returned as errors.
type Result struct {
	Kind       Kind           `json:"kind"`
	Status     llm.Status     `json:"status"`
	SEM        *SEMOutput     `json:"sem,omitempty"`
	SEO        *SEOOutput     `json:"seo,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
	Budget     budget.Payload `json:"budget"`
	Usage      llm.Usage      `json:"usage"`
}

// ActionCount is the number of actions kept after filtering.
func (r *Result) ActionCount() int {
	switch {
	case r == nil:
		return 0
	case r.SEM != nil:
		return len(r.SEM.Actions)
	case r.SEO != nil:
		return len(r.SEO.Actions)
	}
	return 0
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 160 {
		return string(r[:160]) + "..."
	}
	return s
}
