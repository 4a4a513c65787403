package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kocoro-lab/interplay/internal/constants"
)

// JSONB represents a json column: jsonb on Postgres, TEXT on SQLite.
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	if len(raw) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(raw, j)
}

// Status is the lifecycle state of a report run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResearching Status = "researching"
	StatusAnalyzing   Status = "analyzing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// allowedFrom lists the states each target can be entered from. Re-entering
// the current non-terminal state is allowed so retried activities are
// idempotent.
var allowedFrom = map[Status][]Status{
	StatusPending:     {StatusPending},
	StatusResearching: {StatusPending, StatusResearching},
	StatusAnalyzing:   {StatusResearching, StatusAnalyzing},
	StatusCompleted:   {StatusAnalyzing},
	StatusFailed:      {StatusPending, StatusResearching, StatusAnalyzing},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Trigger records what started a run.
type Trigger string

const (
	TriggerClientCreated Trigger = "client_created"
	TriggerManual        Trigger = "manual"
	TriggerScheduled     Trigger = "scheduled"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerClientCreated, TriggerManual, TriggerScheduled:
		return true
	}
	return false
}

// Stage names one persisted intermediate output.
type Stage string

const (
	StageUnified  Stage = "unified"
	StageScout    Stage = "scout"
	StageResearch Stage = "research"
	StageSEM      Stage = "sem"
	StageSEO      Stage = "seo"
	StageDirector Stage = "director"
)

// Stages lists every stage slot in pipeline order.
var Stages = []Stage{StageUnified, StageScout, StageResearch, StageSEM, StageSEO, StageDirector}

// ReportRun is one report generation for a client and date range.
type ReportRun struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ClientID     string     `db:"client_id" json:"client_id"`
	BusinessType string     `db:"business_type" json:"business_type"`
	Trigger      Trigger    `db:"trigger_type" json:"trigger"`
	Status       Status     `db:"status" json:"status"`
	DateStart    string     `db:"date_start" json:"date_start"`
	DateEnd      string     `db:"date_end" json:"date_end"`
	Metrics      JSONB      `db:"metrics" json:"metrics,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// WorkflowID is the Temporal workflow ID of the run.
func (r *ReportRun) WorkflowID() string {
	return WorkflowIDFor(r.ID)
}

// WorkflowIDFor derives the workflow ID from a report ID.
func WorkflowIDFor(id uuid.UUID) string {
	return constants.ReportWorkflowIDPrefix + id.String()
}

// Violation is one recorded constraint violation. Violations are tracked
// for quality reporting and never fail a run.
type Violation struct {
	ID        int64     `db:"id" json:"id"`
	ReportID  uuid.UUID `db:"report_id" json:"report_id"`
	Stage     string    `db:"stage" json:"stage"`
	RuleID    string    `db:"rule_id" json:"rule_id"`
	Pattern   string    `db:"pattern" json:"pattern,omitempty"`
	Snippet   string    `db:"snippet" json:"snippet"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
