// Package director merges the two specialists' actions into the final,
// business-type-safe recommendation list and executive summary. Every
// inclusion, exclusion and ordering decision is made by bundle rules; a
// model may only word the summary narrative.
package director

import (
	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// Channels of a recommendation.
const (
	ChannelSEM    = "sem"
	ChannelSEO    = "seo"
	ChannelHybrid = "hybrid"
)

// MaxActionItems bounds the steps of one recommendation.
const MaxActionItems = 5

// Recommendation is one entry of the final report.
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Channel     string   `json:"channel"`
	Impact      string   `json:"impact"`
	Effort      string   `json:"effort"`
	ActionItems []string `json:"action_items"`
	Score       float64  `json:"score"`
	Source      string   `json:"source"`
	Keyword     string   `json:"keyword,omitempty"`
	URL         string   `json:"url,omitempty"`
	Required    bool     `json:"required,omitempty"`
}

// ExecutiveSummary heads the report.
type ExecutiveSummary struct {
	Headline   string   `json:"headline"`
	Highlights []string `json:"highlights"`
	Narrative  string   `json:"narrative"`
	// NarrativeSource is "model" when generated prose passed sanitization,
	// otherwise "rules".
	NarrativeSource string `json:"narrative_source"`
}

// Stats count what each synthesis phase did.
type Stats struct {
	Candidates int `json:"candidates"`
	Conflicts  int `json:"conflicts"`
	Synergies  int `json:"synergies"`
	Excluded   int `json:"excluded"`
	Capped     int `json:"capped"`
	Backfilled int `json:"backfilled"`
	// RequiredDropped counts required items cut by the cap.
	RequiredDropped int `json:"required_dropped,omitempty"`
}

// Input is both specialist results plus the run's bundle. A nil or empty
// specialist result contributes no candidates.
type Input struct {
	ClientID string          `json:"client_id"`
	Bundle   *skills.Bundle  `json:"bundle"`
	Summary  dataset.Summary `json:"summary"`
	SEM      *agents.Result  `json:"sem"`
	SEO      *agents.Result  `json:"seo"`
}

// Output is the Director's result.
type Output struct {
	Summary         ExecutiveSummary   `json:"executive_summary"`
	Recommendations []Recommendation   `json:"recommendations"`
	Violations      []agents.Violation `json:"violations,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	Stats           Stats              `json:"stats"`
}
