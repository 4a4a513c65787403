package activities

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/metrics"
)

// RecordRunMetrics stores the run metrics and violations and updates the
// Prometheus counters. It is best-effort: failures are logged and never
// returned.
func (a *Activities) RecordRunMetrics(ctx context.Context, in RecordMetricsInput) error {
	metrics.RecordRunCompleted(in.BusinessType, string(in.Status), float64(in.Metrics.TotalDurationMs)/1000)
	for _, v := range in.Violations {
		metrics.RecordViolation(v.Stage, v.RuleID)
	}

	if a.deps.Store == nil {
		return nil
	}
	id, err := uuid.Parse(in.ReportID)
	if err != nil {
		a.logger.Warn("Skipping metrics for invalid report id", zap.String("report_id", in.ReportID))
		return nil
	}

	doc, err := toJSONB(in.Metrics)
	if err != nil {
		a.logger.Warn("Failed to encode run metrics", zap.Error(err))
	} else if err := a.deps.Store.SaveMetrics(ctx, id, doc); err != nil {
		a.logger.Warn("Failed to save run metrics", zap.String("report_id", in.ReportID), zap.Error(err))
	}

	if len(in.Violations) > 0 {
		rows := make([]db.Violation, 0, len(in.Violations))
		for _, v := range in.Violations {
			rows = append(rows, db.Violation{Stage: v.Stage, RuleID: v.RuleID, Pattern: v.Pattern, Snippet: v.Snippet})
		}
		if err := a.deps.Store.AddViolations(ctx, id, rows); err != nil {
			a.logger.Warn("Failed to record violations", zap.String("report_id", in.ReportID), zap.Error(err))
		}
	}
	return nil
}

func toJSONB(v any) (db.JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out db.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
