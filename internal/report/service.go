// Package report is the inbound surface of the pipeline: it accepts report
// requests, starts the workflow asynchronously and serves finished and
// in-flight runs back to callers.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/constants"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/metrics"
	"github.com/Kocoro-lab/interplay/internal/schedules"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/sources"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

const (
	DefaultDays = 30
	MaxDays     = 365
)

var (
	ErrInvalidDays    = errors.New("days must be within 1..365")
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrInvalidID      = errors.New("invalid report id")
	// ErrStartFailed is returned when the run was recorded but its workflow
	// could not be started. The run is marked failed.
	ErrStartFailed = errors.New("failed to start report workflow")
	// ErrSchedulesDisabled is returned by schedule operations when the
	// service has no schedule manager.
	ErrSchedulesDisabled = errors.New("schedules are not enabled")
)

// IsInvalidInput reports whether err rejects caller input rather than
// signalling a service failure.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidDays,
		ErrInvalidTrigger,
		ErrInvalidID,
		skills.ErrUnknownBusinessType,
		schedules.ErrInvalidCronExpression,
		schedules.ErrIntervalTooShort,
		schedules.ErrInvalidTimezone,
		schedules.ErrInvalidDays,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SkillLookup resolves the bundle a run will use.
type SkillLookup interface {
	LoadSkill(bt skills.BusinessType) (*skills.Bundle, error)
}

// Config tunes the service.
type Config struct {
	TaskQueue   string
	DefaultDays int
	Workflow    workflows.Options
}

// Options are the caller's knobs for one report.
type Options struct {
	Days         int        `json:"days"`
	Trigger      db.Trigger `json:"trigger"`
	BusinessType string     `json:"business_type"`
}

// Metadata is the snapshot returned when a report is accepted.
type Metadata struct {
	ClientID     string            `json:"client_id"`
	BusinessType string            `json:"business_type"`
	SkillVersion string            `json:"skill_version"`
	Trigger      db.Trigger        `json:"trigger"`
	Status       db.Status         `json:"status"`
	Days         int               `json:"days"`
	DateRange    sources.DateRange `json:"date_range"`
	WorkflowID   string            `json:"workflow_id"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Accepted acknowledges an asynchronous report request.
type Accepted struct {
	ReportID string   `json:"report_id"`
	Metadata Metadata `json:"metadata"`
}

// Summary is the caller-facing view of a run. Completed runs carry the
// executive summary and the recommendation list, which may be empty.
type Summary struct {
	ReportID         string                     `json:"report_id"`
	ClientID         string                     `json:"client_id"`
	BusinessType     string                     `json:"business_type"`
	Trigger          db.Trigger                 `json:"trigger"`
	Status           db.Status                  `json:"status"`
	DateStart        string                     `json:"date_start"`
	DateEnd          string                     `json:"date_end"`
	ErrorMessage     string                     `json:"error_message,omitempty"`
	ExecutiveSummary *director.ExecutiveSummary `json:"executive_summary,omitempty"`
	Recommendations  []director.Recommendation  `json:"recommendations"`
	Warnings         []string                   `json:"warnings,omitempty"`
	Metrics          db.JSONB                   `json:"metrics,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	CompletedAt      *time.Time                 `json:"completed_at,omitempty"`
}

// WorkflowInfo is the Temporal view of a run.
type WorkflowInfo struct {
	WorkflowID string     `json:"workflow_id"`
	RunID      string     `json:"run_id,omitempty"`
	Status     string     `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	CloseTime  *time.Time `json:"close_time,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Debug exposes every intermediate output of a run.
type Debug struct {
	Run        *db.ReportRun                `json:"run"`
	Stages     map[db.Stage]json.RawMessage `json:"stages"`
	Violations []db.Violation               `json:"violations"`
	Workflow   WorkflowInfo                 `json:"workflow"`
}

// Service implements the report operations.
type Service struct {
	store     *db.Store
	temporal  client.Client
	skills    SkillLookup
	schedules *schedules.Manager
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the service. sched may be nil.
func NewService(store *db.Store, tc client.Client, sk SkillLookup, sched *schedules.Manager, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = DefaultDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		temporal:  tc,
		skills:    sk,
		schedules: sched,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateReport records a pending run and starts its workflow. It returns
// as soon as the workflow is accepted by Temporal.
func (s *Service) GenerateReport(ctx context.Context, clientID string, opts Options) (*Accepted, error) {
	days := opts.Days
	if days == 0 {
		days = s.cfg.DefaultDays
	}
	if days < 1 || days > MaxDays {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDays, opts.Days)
	}
	trigger := opts.Trigger
	if trigger == "" {
		trigger = db.TriggerManual
	}
	if !trigger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, trigger)
	}
	bt, err := skills.ParseBusinessType(opts.BusinessType)
	if err != nil {
		return nil, err
	}
	bundle, err := s.skills.LoadSkill(bt)
	if err != nil {
		return nil, err
	}

	dr := sources.LastDays(s.now(), days)
	run := &db.ReportRun{
		ClientID:     clientID,
		BusinessType: string(bt),
		Trigger:      trigger,
		DateStart:    dr.Start.Format(time.DateOnly),
		DateEnd:      dr.End.Format(time.DateOnly),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	workflowID := run.WorkflowID()
	_, err = s.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             s.cfg.TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"report_id":     run.ID.String(),
			"client_id":     clientID,
			"business_type": string(bt),
			"trigger_type":  string(trigger),
		},
	}, constants.InterplayReportWorkflow, workflows.ReportInput{
		ReportID:     run.ID.String(),
		ClientID:     clientID,
		BusinessType: string(bt),
		Trigger:      trigger,
		DateRange:    dr,
		Options:      s.cfg.Workflow,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &started) {
			s.logger.Error("Failed to start report workflow",
				zap.String("report_id", run.ID.String()),
				zap.Error(err))
			if ferr := s.store.MarkFailed(ctx, run.ID, "start workflow: "+err.Error()); ferr != nil {
				s.logger.Warn("Failed to mark unstarted run failed", zap.Error(ferr))
			}
			return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
		}
		s.logger.Info("Report workflow already started", zap.String("workflow_id", workflowID))
	}

	metrics.ReportsStarted.WithLabelValues(string(bt), string(trigger)).Inc()
	s.logger.Info("Report accepted",
		zap.String("report_id", run.ID.String()),
		zap.String("client_id", clientID),
		zap.String("business_type", string(bt)),
		zap.String("skill_version", bundle.Version),
		zap.Int("days", days),
	)
	return &Accepted{
		ReportID: run.ID.String(),
		Metadata: Metadata{
			ClientID:     clientID,
			BusinessType: string(bt),
			SkillVersion: bundle.Version,
			Trigger:      trigger,
			Status:       run.Status,
			Days:         days,
			DateRange:    dr,
			WorkflowID:   workflowID,
			CreatedAt:    run.CreatedAt,
		},
	}, nil
}

// GetLatestReport returns the newest run of a client whatever its status.
// It fails with db.ErrNotFound when the client has none.
func (s *Service) GetLatestReport(ctx context.Context, clientID string) (*Summary, error) {
	run, err := s.store.LatestRun(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		ReportID:        run.ID.String(),
		ClientID:        run.ClientID,
		BusinessType:    run.BusinessType,
		Trigger:         run.Trigger,
		Status:          run.Status,
		DateStart:       run.DateStart,
		DateEnd:         run.DateEnd,
		ErrorMessage:    run.ErrorMessage,
		Recommendations: []director.Recommendation{},
		Metrics:         run.Metrics,
		CreatedAt:       run.CreatedAt,
		CompletedAt:     run.CompletedAt,
	}
	if run.Status != db.StatusCompleted {
		return sum, nil
	}
	var out director.Output
	ok, err := s.store.LoadStage(ctx, run.ID, db.StageDirector, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("completed run %s has no director output", run.ID)
	}
	sum.ExecutiveSummary = &out.Summary
	if out.Recommendations != nil {
		sum.Recommendations = out.Recommendations
	}
	sum.Warnings = out.Warnings
	return sum, nil
}

// GetReportDebug returns the run with every stored stage output decrypted,
// its violations and the workflow status. A failed Describe is reported in
// the result, not as an error.
func (s *Service) GetReportDebug(ctx context.Context, reportID string) (*Debug, error) {
	id, err := uuid.Parse(reportID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, reportID)
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	stages, err := s.store.StageOutputs(ctx, id)
	if err != nil {
		return nil, err
	}
	violations, err := s.store.Violations(ctx, id)
	if err != nil {
		return nil, err
	}
	if violations == nil {
		violations = []db.Violation{}
	}
	return &Debug{
		Run:        run,
		Stages:     stages,
		Violations: violations,
		Workflow:   s.describe(ctx, run.WorkflowID()),
	}, nil
}

func (s *Service) describe(ctx context.Context, workflowID string) WorkflowInfo {
	wi := WorkflowInfo{WorkflowID: workflowID}
	desc, err := s.temporal.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil || desc == nil || desc.WorkflowExecutionInfo == nil {
		wi.Status = "UNKNOWN"
		if err != nil {
			wi.Error = err.Error()
		}
		return wi
	}
	info := desc.WorkflowExecutionInfo
	wi.RunID = info.GetExecution().GetRunId()
	wi.Status = workflowStatus(info.Status)
	if info.StartTime != nil {
		t := info.StartTime.AsTime()
		wi.StartTime = &t
	}
	if info.CloseTime != nil {
		t := info.CloseTime.AsTime()
		wi.CloseTime = &t
	}
	return wi
}

func workflowStatus(st enums.WorkflowExecutionStatus) string {
	switch st {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "RUNNING"
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "COMPLETED"
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "FAILED"
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "CANCELED"
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "TERMINATED"
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "TIMED_OUT"
	case enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "CONTINUED_AS_NEW"
	default:
		return "UNKNOWN"
	}
}

// MarkStuckFailed fails a run out of band and terminates its workflow. It
// is an operator action for runs whose workers died mid-flight.
func (s *Service) MarkStuckFailed(ctx context.Context, reportID, reason string) error {
	id, err := uuid.Parse(reportID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, reportID)
	}
	return s.markStuck(ctx, id, reason)
}

func (s *Service) markStuck(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "no progress"
	}
	if err := s.store.MarkFailed(ctx, id, "marked failed by operator: "+reason); err != nil {
		return err
	}
	workflowID := db.WorkflowIDFor(id)
	if err := s.temporal.TerminateWorkflow(ctx, workflowID, "", reason); err != nil {
		var nf *serviceerror.NotFound
		if !errors.As(err, &nf) {
			s.logger.Warn("Failed to terminate stuck workflow",
				zap.String("workflow_id", workflowID),
				zap.Error(err))
		}
	}
	s.logger.Info("Report run marked failed", zap.String("report_id", id.String()), zap.String("reason", reason))
	return nil
}

// FailStuckRuns fails every non-terminal run without progress for
// olderThan. Runs that finished in the meantime are skipped.
func (s *Service) FailStuckRuns(ctx context.Context, olderThan time.Duration, reason string) ([]string, error) {
	runs, err := s.store.StuckRuns(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, run := range runs {
		err := s.markStuck(ctx, run.ID, reason)
		if errors.Is(err, db.ErrTerminalStatus) {
			continue
		}
		if err != nil {
			return failed, err
		}
		failed = append(failed, run.ID.String())
	}
	return failed, nil
}

// CreateSchedule registers a recurring report for a client.
func (s *Service) CreateSchedule(ctx context.Context, in schedules.CreateInput) (*schedules.Schedule, error) {
	if s.schedules == nil {
		return nil, ErrSchedulesDisabled
	}
	return s.schedules.CreateSchedule(ctx, in)
}

// ListSchedules returns the live schedules of a client.
func (s *Service) ListSchedules(ctx context.Context, clientID string) ([]*schedules.Schedule, error) {
	if s.schedules == nil {
		return nil, ErrSchedulesDisabled
	}
	return s.schedules.ListSchedules(ctx, clientID)
}

// DeleteSchedule removes a schedule.
func (s *Service) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if s.schedules == nil {
		return ErrSchedulesDisabled
	}
	id, err := uuid.Parse(scheduleID)
	if err != nil {
		return schedules.ErrScheduleNotFound
	}
	return s.schedules.DeleteSchedule(ctx, id)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
