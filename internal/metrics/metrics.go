// Package metrics defines the Prometheus metrics of report runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	ReportsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_reports_started_total",
			Help: "Total number of report runs started",
		},
		[]string{"business_type", "trigger"},
	)

	ReportsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_reports_completed_total",
			Help: "Total number of report runs finished, by final status",
		},
		[]string{"business_type", "status"},
	)

	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interplay_report_duration_seconds",
			Help:    "End-to-end report run duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"business_type"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interplay_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// Agent metrics
	PromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interplay_prompt_tokens_estimated",
			Help:    "Estimated prompt tokens per agent call",
			Buckets: []float64{500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
		[]string{"agent"},
	)

	ModelTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_model_tokens_used_total",
			Help: "Tokens reported by the model provider",
		},
		[]string{"agent"},
	)

	AgentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_agent_results_total",
			Help: "Specialist outcomes: ok, empty or failed",
		},
		[]string{"agent", "status"},
	)

	SerializationMode = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_serialization_mode_total",
			Help: "Serialization mode chosen per agent prompt",
		},
		[]string{"agent", "mode"},
	)

	TruncationDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_truncation_dropped_total",
			Help: "Items dropped from prompts to fit the token budget",
		},
		[]string{"agent", "category"},
	)

	// Research metrics
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_page_fetches_total",
			Help: "Page fetch outcomes",
		},
		[]string{"outcome"},
	)

	// Quality metrics
	ConstraintViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_constraint_violations_total",
			Help: "Recorded constraint violations by stage and rule",
		},
		[]string{"stage", "rule"},
	)
)

// RecordRunCompleted records the end of a run.
func RecordRunCompleted(businessType, status string, durationSeconds float64) {
	ReportsCompleted.WithLabelValues(businessType, status).Inc()
	if durationSeconds > 0 {
		ReportDuration.WithLabelValues(businessType).Observe(durationSeconds)
	}
}

// RecordStage records one stage duration.
func RecordStage(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordAgent records one specialist call.
func RecordAgent(agent, status, mode string, promptTokens, tokensUsed, keywordsDropped, pagesDropped int) {
	AgentResults.WithLabelValues(agent, status).Inc()
	if mode != "" {
		SerializationMode.WithLabelValues(agent, mode).Inc()
	}
	if promptTokens > 0 {
		PromptTokens.WithLabelValues(agent).Observe(float64(promptTokens))
	}
	if tokensUsed > 0 {
		ModelTokensUsed.WithLabelValues(agent).Add(float64(tokensUsed))
	}
	if keywordsDropped > 0 {
		TruncationDropped.WithLabelValues(agent, "keywords").Add(float64(keywordsDropped))
	}
	if pagesDropped > 0 {
		TruncationDropped.WithLabelValues(agent, "pages").Add(float64(pagesDropped))
	}
}

// RecordPageFetches records a research batch.
func RecordPageFetches(succeeded, failed, cached int) {
	PageFetches.WithLabelValues("success").Add(float64(succeeded))
	PageFetches.WithLabelValues("failed").Add(float64(failed))
	PageFetches.WithLabelValues("cached").Add(float64(cached))
}

// RecordViolation counts one constraint violation.
func RecordViolation(stage, rule string) {
	ConstraintViolations.WithLabelValues(stage, rule).Inc()
}
