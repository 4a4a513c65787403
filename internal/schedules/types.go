package schedules

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Schedule status constants
const (
	StatusActive  = "ACTIVE"
	StatusPaused  = "PAUSED"
	StatusDeleted = "DELETED"
)

var (
	ErrInvalidCronExpression = errors.New("invalid cron expression")
	ErrIntervalTooShort      = errors.New("cron interval too short")
	ErrScheduleLimitReached  = errors.New("schedule limit reached")
	ErrInvalidTimezone       = errors.New("invalid timezone")
	ErrInvalidDays           = errors.New("days must be within 1..365")
	ErrScheduleNotFound      = errors.New("schedule not found")
)

// Schedule is a recurring report trigger for one client.
type Schedule struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ClientID           string     `db:"client_id" json:"client_id"`
	BusinessType       string     `db:"business_type" json:"business_type"`
	CronExpression     string     `db:"cron_expression" json:"cron_expression"`
	Timezone           string     `db:"timezone" json:"timezone"`
	Days               int        `db:"days" json:"days"`
	TemporalScheduleID string     `db:"temporal_schedule_id" json:"temporal_schedule_id"`
	Status             string     `db:"status" json:"status"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	NextRunAt          *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
}

// CreateInput is the input for creating a schedule. Empty Timezone uses
// the manager default; zero Days uses 30.
type CreateInput struct {
	ClientID       string
	BusinessType   string
	CronExpression string
	Timezone       string
	Days           int
}
