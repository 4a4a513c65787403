package constants

// Activity and workflow names used for registration and execution.
const (
	// Configuration
	LoadSkillActivity = "LoadSkill"

	// Pipeline stages
	UnifyDataActivity   = "UnifyData"
	RunScoutActivity    = "RunScout"
	ResearchActivity    = "Research"
	RunSEMActivity      = "RunSEM"
	RunSEOActivity      = "RunSEO"
	RunDirectorActivity = "RunDirector"

	// Run bookkeeping
	UpdateReportStatusActivity = "UpdateReportStatus"
	RecordRunMetricsActivity   = "RecordRunMetrics"
	CreateReportRunActivity    = "CreateReportRun"

	// Workflows
	InterplayReportWorkflow = "InterplayReportWorkflow"
	ScheduledReportWorkflow = "ScheduledReportWorkflow"
)

// ReportWorkflowIDPrefix prefixes the report ID to form the workflow ID of
// a run.
const ReportWorkflowIDPrefix = "interplay-"
