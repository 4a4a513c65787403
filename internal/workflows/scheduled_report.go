package workflows

import (
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/constants"
	"github.com/Kocoro-lab/interplay/internal/db"
)

// ScheduledReportInput is the action payload of a client schedule.
type ScheduledReportInput struct {
	ScheduleID   string  `json:"schedule_id"`
	ClientID     string  `json:"client_id"`
	BusinessType string  `json:"business_type"`
	Days         int     `json:"days"`
	Options      Options `json:"options"`
}

// ScheduledReportWorkflow creates a pending run for the client and executes
// the report workflow as a child under the run's own workflow ID, so
// scheduled runs are indistinguishable from API-triggered ones.
func ScheduledReportWorkflow(ctx workflow.Context, in ScheduledReportInput) (ReportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Scheduled report triggered",
		"schedule_id", in.ScheduleID,
		"client_id", in.ClientID,
		"business_type", in.BusinessType,
	)

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeUnknownBusinessType},
		},
	})

	var created activities.CreatedRun
	err := workflow.ExecuteActivity(actCtx, constants.CreateReportRunActivity, activities.CreateRunInput{
		ClientID:     in.ClientID,
		BusinessType: in.BusinessType,
		Days:         in.Days,
		Trigger:      db.TriggerScheduled,
		ScheduleID:   in.ScheduleID,
	}).Get(ctx, &created)
	if err != nil {
		logger.Error("Failed to create scheduled report run", "schedule_id", in.ScheduleID, "error", err)
		return ReportResult{Status: db.StatusFailed, ErrorMessage: errorMessage(err)}, err
	}

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:            constants.ReportWorkflowIDPrefix + created.ReportID,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"schedule_id":  in.ScheduleID,
			"client_id":    in.ClientID,
			"trigger_type": string(db.TriggerScheduled),
		},
	})

	var result ReportResult
	err = workflow.ExecuteChildWorkflow(childCtx, constants.InterplayReportWorkflow, ReportInput{
		ReportID:     created.ReportID,
		ClientID:     in.ClientID,
		BusinessType: in.BusinessType,
		Trigger:      db.TriggerScheduled,
		DateRange:    created.DateRange,
		Options:      in.Options,
	}).Get(ctx, &result)
	if err != nil {
		logger.Warn("Scheduled report failed", "report_id", created.ReportID, "error", err)
		return result, err
	}
	logger.Info("Scheduled report completed", "report_id", created.ReportID)
	return result, nil
}
