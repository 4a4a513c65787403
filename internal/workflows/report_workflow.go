package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/constants"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// InterplayReportWorkflow runs the five analysis stages for one client:
// unify, scout, research, SEM and SEO in parallel, then the Director.
// Any stage error marks the run failed with its message.
func InterplayReportWorkflow(ctx workflow.Context, in ReportInput) (ReportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting InterplayReportWorkflow",
		"report_id", in.ReportID,
		"client_id", in.ClientID,
		"business_type", in.BusinessType,
		"trigger", string(in.Trigger),
	)

	opts := in.Options.withDefaults()
	noRetry := &temporal.RetryPolicy{MaximumAttempts: 1}
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: opts.StageTimeout,
		RetryPolicy:         noRetry,
	})
	dataCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: opts.StageTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: opts.DataFetchAttempts,
		},
	})
	agentCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: opts.AgentTimeout,
		RetryPolicy:         noRetry,
	})
	bookCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	run := &runState{
		start:  workflow.Now(ctx),
		result: ReportResult{ReportID: in.ReportID, Status: db.StatusPending},
		metrics: activities.RunMetrics{
			Agents: make(map[string]activities.AgentMetrics),
		},
	}

	timed := func(stage string, fn func() error) error {
		t0 := workflow.Now(ctx)
		err := fn()
		run.metrics.Stages = append(run.metrics.Stages, activities.StageTiming{
			Stage:      stage,
			DurationMs: workflow.Now(ctx).Sub(t0).Milliseconds(),
		})
		return err
	}

	fail := func(stage string, err error) (ReportResult, error) {
		msg := fmt.Sprintf("%s: %s", stage, errorMessage(err))
		logger.Error("Report run failed", "report_id", in.ReportID, "stage", stage, "error", err)
		if uerr := setStatus(bookCtx, in.ReportID, db.StatusFailed, msg); uerr != nil {
			logger.Warn("Failed to mark run failed", "report_id", in.ReportID, "error", uerr)
		}
		run.result.Status = db.StatusFailed
		run.result.ErrorMessage = msg
		run.finish(ctx, bookCtx, in)
		return run.result, err
	}

	if err := setStatus(bookCtx, in.ReportID, db.StatusResearching, ""); err != nil {
		return fail("status", err)
	}

	var bundle skills.Bundle
	err := workflow.ExecuteActivity(stageCtx, constants.LoadSkillActivity, activities.LoadSkillInput{
		ReportID:     in.ReportID,
		BusinessType: in.BusinessType,
	}).Get(ctx, &bundle)
	if err != nil {
		return fail("skill", err)
	}

	var ds dataset.InterplayDataset
	err = timed(string(db.StageUnified), func() error {
		return workflow.ExecuteActivity(dataCtx, constants.UnifyDataActivity, activities.UnifyInput{
			ReportID:  in.ReportID,
			ClientID:  in.ClientID,
			DateRange: in.DateRange,
		}).Get(ctx, &ds)
	})
	if err != nil {
		return fail(string(db.StageUnified), err)
	}

	var sel scout.Selection
	err = timed(string(db.StageScout), func() error {
		return workflow.ExecuteActivity(stageCtx, constants.RunScoutActivity, activities.ScoutInput{
			ReportID: in.ReportID,
			Dataset:  &ds,
			Bundle:   &bundle,
		}).Get(ctx, &sel)
	})
	if err != nil {
		return fail(string(db.StageScout), err)
	}
	run.result.Warnings = append(run.result.Warnings, sel.Warnings...)

	var enr research.Enrichment
	err = timed(string(db.StageResearch), func() error {
		return workflow.ExecuteActivity(stageCtx, constants.ResearchActivity, activities.ResearchInput{
			ReportID:  in.ReportID,
			Dataset:   &ds,
			Selection: sel,
			Bundle:    &bundle,
		}).Get(ctx, &enr)
	})
	if err != nil {
		return fail(string(db.StageResearch), err)
	}
	run.metrics.PageFetches = enr.Stats

	if err := setStatus(bookCtx, in.ReportID, db.StatusAnalyzing, ""); err != nil {
		return fail("status", err)
	}

	agentIn := agents.Input{
		ClientID:  in.ClientID,
		DateRange: in.DateRange,
		Summary:   ds.Summary,
		Bundle:    &bundle,
		Keywords:  enr.Keywords,
		Pages:     enr.Pages,
	}
	specialists := []struct {
		kind     agents.Kind
		activity string
		out      *agents.Result
		err      error
		ms       int64
	}{
		{kind: agents.KindSEM, activity: constants.RunSEMActivity},
		{kind: agents.KindSEO, activity: constants.RunSEOActivity},
	}
	wg := workflow.NewWaitGroup(ctx)
	for i := range specialists {
		sp := &specialists[i]
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			t0 := workflow.Now(gctx)
			var res agents.Result
			sp.err = workflow.ExecuteActivity(agentCtx, sp.activity, activities.SpecialistInput{
				ReportID: in.ReportID,
				Input:    agentIn,
			}).Get(gctx, &res)
			sp.ms = workflow.Now(gctx).Sub(t0).Milliseconds()
			if sp.err == nil {
				sp.out = &res
			}
		})
	}
	wg.Wait(ctx)

	for _, sp := range specialists {
		run.metrics.Stages = append(run.metrics.Stages, activities.StageTiming{Stage: string(sp.kind), DurationMs: sp.ms})
	}
	for _, sp := range specialists {
		if sp.err != nil {
			run.metrics.Agents[string(sp.kind)] = activities.AgentMetrics{Status: "failed"}
			return fail(string(sp.kind), sp.err)
		}
		run.metrics.Agents[string(sp.kind)] = activities.AgentFromResult(sp.out)
		run.result.Warnings = append(run.result.Warnings, sp.out.Warnings...)
		run.violations = append(run.violations, sp.out.Violations...)
	}

	var out director.Output
	err = timed(string(db.StageDirector), func() error {
		return workflow.ExecuteActivity(agentCtx, constants.RunDirectorActivity, activities.DirectorInput{
			ReportID: in.ReportID,
			Input: director.Input{
				ClientID: in.ClientID,
				Bundle:   &bundle,
				Summary:  ds.Summary,
				SEM:      specialists[0].out,
				SEO:      specialists[1].out,
			},
		}).Get(ctx, &out)
	})
	if err != nil {
		return fail(string(db.StageDirector), err)
	}
	run.result.Summary = out.Summary
	run.result.Recommendations = out.Recommendations
	run.result.Warnings = append(run.result.Warnings, out.Warnings...)
	run.violations = append(run.violations, out.Violations...)
	run.metrics.Recommendations = len(out.Recommendations)

	if err := setStatus(bookCtx, in.ReportID, db.StatusCompleted, ""); err != nil {
		return fail("status", err)
	}
	run.result.Status = db.StatusCompleted
	run.finish(ctx, bookCtx, in)

	logger.Info("InterplayReportWorkflow completed",
		"report_id", in.ReportID,
		"recommendations", len(out.Recommendations),
		"violations", len(run.violations),
	)
	return run.result, nil
}

type runState struct {
	start      time.Time
	result     ReportResult
	metrics    activities.RunMetrics
	violations []agents.Violation
}

// finish closes the metrics and records them. Recording is best-effort.
func (r *runState) finish(ctx, bookCtx workflow.Context, in ReportInput) {
	r.metrics.TotalDurationMs = workflow.Now(ctx).Sub(r.start).Milliseconds()
	r.metrics.ViolationCount = len(r.violations)
	r.metrics.Warnings = r.result.Warnings
	r.result.Metrics = r.metrics

	err := workflow.ExecuteActivity(bookCtx, constants.RecordRunMetricsActivity, activities.RecordMetricsInput{
		ReportID:     in.ReportID,
		BusinessType: in.BusinessType,
		Status:       r.result.Status,
		Metrics:      r.metrics,
		Violations:   r.violations,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Failed to record run metrics", "report_id", in.ReportID, "error", err)
	}
}

func setStatus(ctx workflow.Context, reportID string, status db.Status, msg string) error {
	return workflow.ExecuteActivity(ctx, constants.UpdateReportStatusActivity, activities.UpdateStatusInput{
		ReportID: reportID,
		Status:   status,
		Error:    msg,
	}).Get(ctx, nil)
}

// errorMessage prefers the application error raised by the activity over
// the activity wrapper text.
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
