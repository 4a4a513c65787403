package activities

import (
	"go.temporal.io/sdk/activity"

	"github.com/Kocoro-lab/interplay/internal/constants"
)

// Registrar is the part of a worker or test environment Register needs.
type Registrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds every activity under its constant name.
func Register(r Registrar, a *Activities) {
	named := []struct {
		fn   interface{}
		name string
	}{
		{a.LoadSkill, constants.LoadSkillActivity},
		{a.UnifyData, constants.UnifyDataActivity},
		{a.RunScout, constants.RunScoutActivity},
		{a.Research, constants.ResearchActivity},
		{a.RunSEM, constants.RunSEMActivity},
		{a.RunSEO, constants.RunSEOActivity},
		{a.RunDirector, constants.RunDirectorActivity},
		{a.UpdateReportStatus, constants.UpdateReportStatusActivity},
		{a.RecordRunMetrics, constants.RecordRunMetricsActivity},
		{a.CreateReportRun, constants.CreateReportRunActivity},
	}
	for _, n := range named {
		r.RegisterActivityWithOptions(n.fn, activity.RegisterOptions{Name: n.name})
	}
}
