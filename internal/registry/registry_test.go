package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/activities"
	"github.com/Kocoro-lab/interplay/internal/constants"
)

type recorder struct {
	workflows  []string
	activities []string
}

func (r *recorder) RegisterWorkflowWithOptions(_ interface{}, o workflow.RegisterOptions) {
	r.workflows = append(r.workflows, o.Name)
}

func (r *recorder) RegisterActivityWithOptions(_ interface{}, o activity.RegisterOptions) {
	r.activities = append(r.activities, o.Name)
}

func TestRegisterAll(t *testing.T) {
	rec := &recorder{}
	reg := NewReportRegistry(activities.NewActivities(activities.Deps{}, zap.NewNop()), zap.NewNop())
	require.NoError(t, RegisterAll(reg, rec))

	assert.ElementsMatch(t, []string{constants.InterplayReportWorkflow, constants.ScheduledReportWorkflow}, rec.workflows)
	assert.Contains(t, rec.activities, constants.RunDirectorActivity)
	assert.Contains(t, rec.activities, constants.CreateReportRunActivity)
	assert.Len(t, rec.activities, 10)
}

func TestRegisterWithoutActivities(t *testing.T) {
	err := NewReportRegistry(nil, nil).RegisterActivities(&recorder{})
	assert.Error(t, err)
}
