package workflows

import (
	"time"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
)

// Options tune activity timeouts and retries of one run.
type Options struct {
	// DataFetchAttempts bounds UnifyData attempts; transport failures of
	// the sources may be retried, nothing else is.
	DataFetchAttempts int32         `json:"data_fetch_attempts"`
	StageTimeout      time.Duration `json:"stage_timeout"`
	AgentTimeout      time.Duration `json:"agent_timeout"`
}

func (o Options) withDefaults() Options {
	if o.DataFetchAttempts <= 0 {
		o.DataFetchAttempts = 1
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 5 * time.Minute
	}
	if o.AgentTimeout <= 0 {
		o.AgentTimeout = 10 * time.Minute
	}
	return o
}

// ReportInput starts one report run. The run row already exists in
// pending status.
type ReportInput struct {
	ReportID     string            `json:"report_id"`
	ClientID     string            `json:"client_id"`
	BusinessType string            `json:"business_type"`
	Trigger      db.Trigger        `json:"trigger"`
	DateRange    dataset.DateRange `json:"date_range"`
	Options      Options           `json:"options"`
}

// ReportResult is the workflow outcome. Full stage outputs live in the
// store.
type ReportResult struct {
	ReportID        string                    `json:"report_id"`
	Status          db.Status                 `json:"status"`
	Summary         director.ExecutiveSummary `json:"executive_summary"`
	Recommendations []director.Recommendation `json:"recommendations"`
	Warnings        []string                  `json:"warnings,omitempty"`
	ErrorMessage    string                    `json:"error_message,omitempty"`
	Metrics         activities.RunMetrics     `json:"metrics"`
}
