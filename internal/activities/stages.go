package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/metrics"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/scout"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/tracing"
)

// stage runs fn inside a span, records its duration and classifies its
// error.
func (a *Activities) stage(ctx context.Context, name, reportID string, fn func(context.Context) error) error {
	ctx, span := tracing.StartStage(ctx, name, reportID)
	start := time.Now()
	err := fn(ctx)
	metrics.RecordStage(name, time.Since(start).Seconds())
	tracing.End(span, err)
	if err != nil {
		activity.GetLogger(ctx).Error("Stage failed", "stage", name, "report_id", reportID, "error", err)
		a.logger.Error("Stage failed",
			zap.String("stage", name),
			zap.String("report_id", reportID),
			zap.Error(err))
	}
	return classify(err)
}

// saveStage persists a stage output when a store is configured.
func (a *Activities) saveStage(ctx context.Context, reportID string, stage db.Stage, v any) error {
	if a.deps.Store == nil {
		return nil
	}
	id, err := uuid.Parse(reportID)
	if err != nil {
		return fmt.Errorf("invalid report id %q: %w", reportID, err)
	}
	return a.deps.Store.SaveStage(ctx, id, stage, v)
}

// LoadSkill resolves the run's bundle once; every later stage receives it
// in its input.
func (a *Activities) LoadSkill(ctx context.Context, in LoadSkillInput) (*skills.Bundle, error) {
	var out *skills.Bundle
	err := a.stage(ctx, "skill", in.ReportID, func(ctx context.Context) error {
		b, err := a.deps.Skills.LoadSkill(skills.BusinessType(in.BusinessType))
		if err != nil {
			return err
		}
		out = b
		activity.GetLogger(ctx).Info("Skill bundle loaded",
			"business_type", in.BusinessType, "version", b.Version, "placeholder", b.Placeholder)
		return nil
	})
	return out, err
}

// UnifyData builds the unified dataset from the three sources.
func (a *Activities) UnifyData(ctx context.Context, in UnifyInput) (*dataset.InterplayDataset, error) {
	var out *dataset.InterplayDataset
	err := a.stage(ctx, string(db.StageUnified), in.ReportID, func(ctx context.Context) error {
		ds, err := a.deps.Unifier.Build(ctx, in.ClientID, in.DateRange)
		if err != nil {
			return err
		}
		out = ds
		activity.GetLogger(ctx).Info("Dataset unified",
			"client_id", in.ClientID, "queries", ds.Summary.QueryCount, "overlap", ds.Summary.Overlap)
		return a.saveStage(ctx, in.ReportID, db.StageUnified, ds)
	})
	return out, err
}

// RunScout selects the keywords and pages worth analyzing.
func (a *Activities) RunScout(ctx context.Context, in ScoutInput) (*scout.Selection, error) {
	var out *scout.Selection
	err := a.stage(ctx, string(db.StageScout), in.ReportID, func(ctx context.Context) error {
		if in.Dataset == nil || in.Bundle == nil {
			return fmt.Errorf("scout: dataset and bundle are required")
		}
		sel := scout.Select(in.Dataset, in.Bundle)
		out = &sel
		activity.GetLogger(ctx).Info("Scout selection ready",
			"keywords", len(sel.Keywords), "pages", len(sel.Pages))
		return a.saveStage(ctx, in.ReportID, db.StageScout, sel)
	})
	return out, err
}

// Research enriches the selection. Individual page failures are recorded in
// the output and never fail the activity.
func (a *Activities) Research(ctx context.Context, in ResearchInput) (*research.Enrichment, error) {
	var out *research.Enrichment
	err := a.stage(ctx, string(db.StageResearch), in.ReportID, func(ctx context.Context) error {
		enr, err := a.deps.Researcher.Enrich(ctx, in.Dataset, in.Selection, in.Bundle)
		if err != nil {
			return err
		}
		out = enr
		metrics.RecordPageFetches(enr.Stats.Succeeded, enr.Stats.Failed, enr.Stats.Cached)
		activity.GetLogger(ctx).Info("Research complete",
			"pages_attempted", enr.Stats.Attempted, "pages_failed", enr.Stats.Failed, "boosted", enr.Boosted)
		return a.saveStage(ctx, in.ReportID, db.StageResearch, enr)
	})
	return out, err
}

// RunSEM runs the paid-search specialist.
func (a *Activities) RunSEM(ctx context.Context, in SpecialistInput) (*agents.Result, error) {
	return a.runSpecialist(ctx, a.deps.SEM, db.StageSEM, in)
}

// RunSEO runs the organic-search specialist.
func (a *Activities) RunSEO(ctx context.Context, in SpecialistInput) (*agents.Result, error) {
	return a.runSpecialist(ctx, a.deps.SEO, db.StageSEO, in)
}

func (a *Activities) runSpecialist(ctx context.Context, agent *agents.Agent, stage db.Stage, in SpecialistInput) (*agents.Result, error) {
	var out *agents.Result
	err := a.stage(ctx, string(stage), in.ReportID, func(ctx context.Context) error {
		res, err := agent.Analyze(ctx, in.Input)
		if err != nil {
			metrics.RecordAgent(string(agent.Kind()), "failed", "", 0, 0, 0, 0)
			return err
		}
		out = res
		metrics.RecordAgent(string(agent.Kind()), string(res.Status), string(res.Budget.Decision.Mode),
			res.Usage.EstimatedPromptTokens, res.Usage.TokensUsed,
			res.Budget.KeywordsDropped, res.Budget.PagesDropped)
		for _, w := range res.Warnings {
			activity.GetLogger(ctx).Warn("Specialist warning", "agent", string(agent.Kind()), "warning", w)
		}
		return a.saveStage(ctx, in.ReportID, stage, res)
	})
	return out, err
}

// RunDirector synthesizes the final recommendations.
func (a *Activities) RunDirector(ctx context.Context, in DirectorInput) (*director.Output, error) {
	var out *director.Output
	err := a.stage(ctx, string(db.StageDirector), in.ReportID, func(ctx context.Context) error {
		res, err := a.deps.Director.Synthesize(ctx, in.Input)
		if err != nil {
			return err
		}
		out = res
		activity.GetLogger(ctx).Info("Director synthesis complete",
			"recommendations", len(res.Recommendations), "violations", len(res.Violations))
		return a.saveStage(ctx, in.ReportID, db.StageDirector, res)
	})
	return out, err
}
