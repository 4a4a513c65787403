// Package schedules manages recurring report triggers per client as
// Temporal schedules, mirrored in the report_schedules table.
package schedules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/constants"
	"github.com/Kocoro-lab/interplay/internal/skills"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

// Config holds schedule limits
type Config struct {
	MinInterval     time.Duration // Min time between two fires (default: 1h)
	MaxPerClient    int           // Max live schedules per client (default: 5)
	DefaultTimezone string
	TaskQueue       string
	// Options are passed to every scheduled run.
	Options workflows.Options
}

// SkillLookup validates the business type of a new schedule.
type SkillLookup interface {
	LoadSkill(bt skills.BusinessType) (*skills.Bundle, error)
}

// Manager handles schedule CRUD operations
type Manager struct {
	schedules  client.ScheduleClient
	dbOps      *DBOperations
	skills     SkillLookup
	config     Config
	logger     *zap.Logger
	cronParser cron.Parser
}

// NewManager creates a new schedule manager
func NewManager(sc client.ScheduleClient, dbOps *DBOperations, sk SkillLookup, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Hour
	}
	if cfg.MaxPerClient <= 0 {
		cfg.MaxPerClient = 5
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		schedules:  sc,
		dbOps:      dbOps,
		skills:     sk,
		config:     cfg,
		logger:     logger,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// CreateSchedule validates the trigger and registers it with Temporal.
func (m *Manager) CreateSchedule(ctx context.Context, req CreateInput) (*Schedule, error) {
	spec, err := m.cronParser.Parse(req.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	if !m.validateMinInterval(spec) {
		return nil, fmt.Errorf("%w: must be at least %s", ErrIntervalTooShort, m.config.MinInterval)
	}
	if req.Days == 0 {
		req.Days = 30
	}
	if req.Days < 1 || req.Days > 365 {
		return nil, ErrInvalidDays
	}
	if _, err := m.skills.LoadSkill(skills.BusinessType(req.BusinessType)); err != nil {
		return nil, err
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = m.config.DefaultTimezone
	}
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, timezone)
	}

	count, err := m.dbOps.CountSchedulesByClient(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check schedule limit: %w", err)
	}
	if count >= m.config.MaxPerClient {
		return nil, fmt.Errorf("%w: %d/%d schedules", ErrScheduleLimitReached, count, m.config.MaxPerClient)
	}

	scheduleID := uuid.New()
	temporalScheduleID := fmt.Sprintf("interplay-schedule-%s", scheduleID.String())

	_, err = m.schedules.Create(ctx, client.ScheduleOptions{
		ID: temporalScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{req.CronExpression},
			TimeZoneName:    timezone,
		},
		Action: &client.ScheduleWorkflowAction{
			Workflow:  constants.ScheduledReportWorkflow,
			TaskQueue: m.config.TaskQueue,
			Args: []interface{}{
				workflows.ScheduledReportInput{
					ScheduleID:   scheduleID.String(),
					ClientID:     req.ClientID,
					BusinessType: req.BusinessType,
					Days:         req.Days,
					Options:      m.config.Options,
				},
			},
			Memo: map[string]interface{}{
				"schedule_id": scheduleID.String(),
				"client_id":   req.ClientID,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal schedule: %w", err)
	}

	now := time.Now().UTC()
	nextRun := spec.Next(now.In(tz)).UTC()
	s := &Schedule{
		ID:                 scheduleID,
		ClientID:           req.ClientID,
		BusinessType:       req.BusinessType,
		CronExpression:     req.CronExpression,
		Timezone:           timezone,
		Days:               req.Days,
		TemporalScheduleID: temporalScheduleID,
		Status:             StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
		NextRunAt:          &nextRun,
	}
	if err := m.dbOps.CreateSchedule(ctx, s); err != nil {
		_ = m.schedules.GetHandle(ctx, temporalScheduleID).Delete(ctx)
		return nil, fmt.Errorf("failed to persist schedule: %w", err)
	}

	m.logger.Info("Schedule created",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("client_id", req.ClientID),
		zap.String("cron", req.CronExpression),
	)
	return s, nil
}

// PauseSchedule pauses a schedule (prevents future runs)
func (m *Manager) PauseSchedule(ctx context.Context, scheduleID uuid.UUID, reason string) error {
	s, err := m.dbOps.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if s.Status == StatusPaused {
		return nil
	}
	handle := m.schedules.GetHandle(ctx, s.TemporalScheduleID)
	if err := handle.Pause(ctx, client.SchedulePauseOptions{Note: reason}); err != nil {
		return fmt.Errorf("failed to pause Temporal schedule: %w", err)
	}
	if err := m.dbOps.UpdateScheduleStatus(ctx, scheduleID, StatusPaused); err != nil {
		return fmt.Errorf("failed to update schedule status: %w", err)
	}
	m.logger.Info("Schedule paused", zap.String("schedule_id", scheduleID.String()), zap.String("reason", reason))
	return nil
}

// ResumeSchedule resumes a paused schedule and returns its next fire time.
func (m *Manager) ResumeSchedule(ctx context.Context, scheduleID uuid.UUID, reason string) (*time.Time, error) {
	s, err := m.dbOps.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusActive {
		return s.NextRunAt, nil
	}
	handle := m.schedules.GetHandle(ctx, s.TemporalScheduleID)
	if err := handle.Unpause(ctx, client.ScheduleUnpauseOptions{Note: reason}); err != nil {
		return nil, fmt.Errorf("failed to unpause Temporal schedule: %w", err)
	}

	spec, err := m.cronParser.Parse(s.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	tz, err := time.LoadLocation(s.Timezone)
	if err != nil {
		tz = time.UTC
	}
	nextRun := spec.Next(time.Now().In(tz)).UTC()

	if err := m.dbOps.UpdateScheduleStatus(ctx, scheduleID, StatusActive); err != nil {
		return nil, fmt.Errorf("failed to update schedule status: %w", err)
	}
	if err := m.dbOps.UpdateScheduleNextRun(ctx, scheduleID, nextRun); err != nil {
		return nil, fmt.Errorf("failed to update next run time: %w", err)
	}
	m.logger.Info("Schedule resumed",
		zap.String("schedule_id", scheduleID.String()),
		zap.Time("next_run", nextRun),
	)
	return &nextRun, nil
}

// DeleteSchedule soft-deletes a schedule
func (m *Manager) DeleteSchedule(ctx context.Context, scheduleID uuid.UUID) error {
	s, err := m.dbOps.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if err := m.schedules.GetHandle(ctx, s.TemporalScheduleID).Delete(ctx); err != nil {
		// Continue with the soft delete even if Temporal delete fails
		m.logger.Warn("Failed to delete Temporal schedule (may already be deleted)",
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err),
		)
	}
	if err := m.dbOps.UpdateScheduleStatus(ctx, scheduleID, StatusDeleted); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	m.logger.Info("Schedule deleted", zap.String("schedule_id", scheduleID.String()))
	return nil
}

// GetSchedule retrieves a single schedule
func (m *Manager) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*Schedule, error) {
	return m.dbOps.GetSchedule(ctx, scheduleID)
}

// ListSchedules retrieves the live schedules of a client
func (m *Manager) ListSchedules(ctx context.Context, clientID string) ([]*Schedule, error) {
	return m.dbOps.ListSchedules(ctx, clientID)
}

// validateMinInterval checks the gap between the next two fire times.
func (m *Manager) validateMinInterval(spec cron.Schedule) bool {
	next1 := spec.Next(time.Now().UTC())
	next2 := spec.Next(next1)
	return next2.Sub(next1) >= m.config.MinInterval
}
