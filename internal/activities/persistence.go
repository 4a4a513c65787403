package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
)

// UpdateReportStatus moves a run through the status machine. Terminal runs
// reject the move with a non-retryable error.
func (a *Activities) UpdateReportStatus(ctx context.Context, in UpdateStatusInput) error {
	if a.deps.Store == nil {
		return nil
	}
	id, err := uuid.Parse(in.ReportID)
	if err != nil {
		return fmt.Errorf("invalid report id %q: %w", in.ReportID, err)
	}
	if err := a.deps.Store.UpdateStatus(ctx, id, in.Status, in.Error); err != nil {
		a.logger.Warn("Report status update rejected",
			zap.String("report_id", in.ReportID),
			zap.String("status", string(in.Status)),
			zap.Error(err))
		return classify(err)
	}
	activity.GetLogger(ctx).Info("Report status updated", "report_id", in.ReportID, "status", string(in.Status))
	return nil
}

// CreateReportRun inserts a pending run. Scheduled triggers use it since
// they start without going through the report service.
func (a *Activities) CreateReportRun(ctx context.Context, in CreateRunInput) (*CreatedRun, error) {
	if a.deps.Store == nil {
		return nil, fmt.Errorf("no report store configured")
	}
	if _, err := a.deps.Skills.LoadSkill(skills.BusinessType(in.BusinessType)); err != nil {
		return nil, classify(err)
	}
	days := in.Days
	if days <= 0 {
		days = 30
	}
	r := sources.LastDays(time.Now(), days)
	run := &db.ReportRun{
		ClientID:     in.ClientID,
		BusinessType: in.BusinessType,
		Trigger:      in.Trigger,
		DateStart:    r.Start.Format(time.DateOnly),
		DateEnd:      r.End.Format(time.DateOnly),
	}
	if err := a.deps.Store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("Report run created",
		"report_id", run.ID.String(), "client_id", in.ClientID, "schedule_id", in.ScheduleID)
	return &CreatedRun{ReportID: run.ID.String(), DateRange: r}, nil
}
