package activities

import (
	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// LoadSkillInput selects the bundle of a run.
type LoadSkillInput struct {
	ReportID     string `json:"report_id"`
	BusinessType string `json:"business_type"`
}

// UnifyInput asks for the unified dataset of a client.
type UnifyInput struct {
	ReportID  string            `json:"report_id"`
	ClientID  string            `json:"client_id"`
	DateRange dataset.DateRange `json:"date_range"`
}

// ScoutInput runs triage over the unified dataset.
type ScoutInput struct {
	ReportID string                    `json:"report_id"`
	Dataset  *dataset.InterplayDataset `json:"dataset"`
	Bundle   *skills.Bundle            `json:"bundle"`
}

// ResearchInput enriches Scout's selection.
type ResearchInput struct {
	ReportID  string                    `json:"report_id"`
	Dataset   *dataset.InterplayDataset `json:"dataset"`
	Selection scout.Selection           `json:"selection"`
	Bundle    *skills.Bundle            `json:"bundle"`
}

// SpecialistInput feeds one specialist agent.
type SpecialistInput struct {
	ReportID string       `json:"report_id"`
	Input    agents.Input `json:"input"`
}

// DirectorInput feeds the synthesis stage.
type DirectorInput struct {
	ReportID string         `json:"report_id"`
	Input    director.Input `json:"input"`
}

// UpdateStatusInput moves a run through the status machine.
type UpdateStatusInput struct {
	ReportID string    `json:"report_id"`
	Status   db.Status `json:"status"`
	Error    string    `json:"error,omitempty"`
}

// StageTiming is the duration of one stage.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

// AgentMetrics summarizes one specialist call.
type AgentMetrics struct {
	Status          string `json:"status"`
	Mode            string `json:"mode"`
	EstimatedTokens int    `json:"estimated_tokens"`
	TokensUsed      int    `json:"tokens_used"`
	KeywordsKept    int    `json:"keywords_kept"`
	KeywordsDropped int    `json:"keywords_dropped"`
	PagesKept       int    `json:"pages_kept"`
	PagesDropped    int    `json:"pages_dropped"`
	Actions         int    `json:"actions"`
}

// RunMetrics is the per-run metrics document.
type RunMetrics struct {
	Stages          []StageTiming           `json:"stages"`
	TotalDurationMs int64                   `json:"total_duration_ms"`
	Agents          map[string]AgentMetrics `json:"agents"`
	PageFetches     research.FetchStats     `json:"page_fetches"`
	Recommendations int                     `json:"recommendations"`
	ViolationCount  int                     `json:"violation_count"`
	Warnings        []string                `json:"warnings,omitempty"`
}

// AgentFromResult extracts the metrics of a specialist result.
func AgentFromResult(r *agents.Result) AgentMetrics {
	if r == nil {
		return AgentMetrics{}
	}
	return AgentMetrics{
		Status:          string(r.Status),
		Mode:            string(r.Budget.Decision.Mode),
		EstimatedTokens: r.Usage.EstimatedPromptTokens,
		TokensUsed:      r.Usage.TokensUsed,
		KeywordsKept:    r.Budget.KeywordsKept,
		KeywordsDropped: r.Budget.KeywordsDropped,
		PagesKept:       r.Budget.PagesKept,
		PagesDropped:    r.Budget.PagesDropped,
		Actions:         r.ActionCount(),
	}
}

// RecordMetricsInput closes a run's bookkeeping.
type RecordMetricsInput struct {
	ReportID     string             `json:"report_id"`
	BusinessType string             `json:"business_type"`
	Status       db.Status          `json:"status"`
	Metrics      RunMetrics         `json:"metrics"`
	Violations   []agents.Violation `json:"violations,omitempty"`
}

// CreateRunInput creates a pending run for a scheduled trigger.
type CreateRunInput struct {
	ClientID     string     `json:"client_id"`
	BusinessType string     `json:"business_type"`
	Days         int        `json:"days"`
	Trigger      db.Trigger `json:"trigger"`
	ScheduleID   string     `json:"schedule_id,omitempty"`
}

// CreatedRun identifies the run created by CreateReportRun.
type CreatedRun struct {
	ReportID  string            `json:"report_id"`
	DateRange dataset.DateRange `json:"date_range"`
}
