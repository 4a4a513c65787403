// Package registry registers the report workflows and activities on a
// Temporal worker.
package registry

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

// ReportRegistry implements the Registry interface
type ReportRegistry struct {
	acts   *activities.Activities
	logger *zap.Logger
}

// NewReportRegistry creates a registry for acts.
func NewReportRegistry(acts *activities.Activities, logger *zap.Logger) *ReportRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportRegistry{acts: acts, logger: logger}
}

// RegisterWorkflows registers the report and scheduled report workflows.
func (r *ReportRegistry) RegisterWorkflows(w Target) error {
	workflows.Register(w)
	r.logger.Info("Registered report workflows")
	return nil
}

// RegisterActivities registers every stage and bookkeeping activity.
func (r *ReportRegistry) RegisterActivities(w Target) error {
	if r.acts == nil {
		return errors.New("no activities configured")
	}
	activities.Register(w, r.acts)
	r.logger.Info("Registered report activities")
	return nil
}

// RegisterAll registers workflows then activities.
func RegisterAll(reg Registry, w Target) error {
	if err := reg.RegisterWorkflows(w); err != nil {
		return err
	}
	return reg.RegisterActivities(w)
}
