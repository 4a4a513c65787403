// Package activities wraps each report pipeline stage as a Temporal
// activity. Stage activities persist their own output into the run's
// stage slot before returning it to the workflow.
package activities

import (
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/agents"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/research"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// Deps are the collaborators the activities run against.
type Deps struct {
	Skills     *skills.Registry
	Unifier    *dataset.Unifier
	Researcher *research.Researcher
	SEM        *agents.Agent
	SEO        *agents.Agent
	Director   *director.Director
	Store      *db.Store
}

// Activities struct holds dependencies for activities
type Activities struct {
	deps   Deps
	logger *zap.Logger
}

// NewActivities creates a new activities instance with dependencies
func NewActivities(deps Deps, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{deps: deps, logger: logger}
}
