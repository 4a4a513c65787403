package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Kocoro-lab/interplay/internal/constants"
)

// Registrar is the part of a worker or test environment Register needs.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

// Register adds the report workflows under their constant names.
func Register(r Registrar) {
	r.RegisterWorkflowWithOptions(InterplayReportWorkflow, workflow.RegisterOptions{Name: constants.InterplayReportWorkflow})
	r.RegisterWorkflowWithOptions(ScheduledReportWorkflow, workflow.RegisterOptions{Name: constants.ScheduledReportWorkflow})
}
