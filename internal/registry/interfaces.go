package registry

import (
	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

// Target is what a worker or test environment exposes for registration.
type Target interface {
	activities.Registrar
	workflows.Registrar
}

// WorkflowRegistrar defines the interface for registering workflows
type WorkflowRegistrar interface {
	RegisterWorkflows(w Target) error
}

// ActivityRegistrar defines the interface for registering activities
type ActivityRegistrar interface {
	RegisterActivities(w Target) error
}

// Registry combines both workflow and activity registration
type Registry interface {
	WorkflowRegistrar
	ActivityRegistrar
}
