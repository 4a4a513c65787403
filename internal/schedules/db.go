package schedules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS report_schedules (
	id                   UUID PRIMARY KEY,
	client_id            TEXT NOT NULL,
	business_type        TEXT NOT NULL,
	cron_expression      TEXT NOT NULL,
	timezone             TEXT NOT NULL,
	days                 INTEGER NOT NULL,
	temporal_schedule_id TEXT NOT NULL UNIQUE,
	status               TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	next_run_at          TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_report_schedules_client ON report_schedules (client_id, status);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS report_schedules (
	id                   TEXT PRIMARY KEY,
	client_id            TEXT NOT NULL,
	business_type        TEXT NOT NULL,
	cron_expression      TEXT NOT NULL,
	timezone             TEXT NOT NULL,
	days                 INTEGER NOT NULL,
	temporal_schedule_id TEXT NOT NULL UNIQUE,
	status               TEXT NOT NULL,
	created_at           TIMESTAMP NOT NULL,
	updated_at           TIMESTAMP NOT NULL,
	next_run_at          TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_report_schedules_client ON report_schedules (client_id, status);
`

const scheduleColumns = `id, client_id, business_type, cron_expression, timezone, days,
	temporal_schedule_id, status, created_at, updated_at, next_run_at`

// DBOperations handles schedule database operations
type DBOperations struct {
	db *sqlx.DB
}

// NewDBOperations creates a new DBOperations instance
func NewDBOperations(db *sqlx.DB) *DBOperations {
	return &DBOperations{db: db}
}

// Migrate creates the schedules table for the connection's driver.
func (d *DBOperations) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if d.db.DriverName() == "sqlite" {
		schema = sqliteSchema
	}
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schedules: %w", err)
	}
	return nil
}

// CreateSchedule inserts a new schedule
func (d *DBOperations) CreateSchedule(ctx context.Context, s *Schedule) error {
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO report_schedules (`+scheduleColumns+`)
		VALUES (:id, :client_id, :business_type, :cron_expression, :timezone, :days,
			:temporal_schedule_id, :status, :created_at, :updated_at, :next_run_at)`, s)
	return err
}

// GetSchedule retrieves a schedule by ID. Deleted schedules are not found.
func (d *DBOperations) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	var s Schedule
	err := d.db.GetContext(ctx, &s, d.db.Rebind(`
		SELECT `+scheduleColumns+` FROM report_schedules
		WHERE id = ? AND status != ?`), id, StatusDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns the live schedules of a client, newest first. An
// empty clientID lists every client.
func (d *DBOperations) ListSchedules(ctx context.Context, clientID string) ([]*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM report_schedules WHERE status != ?`
	args := []interface{}{StatusDeleted}
	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC`
	var out []*Schedule
	if err := d.db.SelectContext(ctx, &out, d.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSchedulesByClient counts live schedules of a client.
func (d *DBOperations) CountSchedulesByClient(ctx context.Context, clientID string) (int, error) {
	var n int
	err := d.db.GetContext(ctx, &n, d.db.Rebind(`
		SELECT COUNT(*) FROM report_schedules WHERE client_id = ? AND status != ?`), clientID, StatusDeleted)
	return n, err
}

// UpdateScheduleStatus sets the status of a schedule.
func (d *DBOperations) UpdateScheduleStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := d.db.ExecContext(ctx, d.db.Rebind(`
		UPDATE report_schedules SET status = ?, updated_at = ? WHERE id = ?`),
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// UpdateScheduleNextRun records the next fire time.
func (d *DBOperations) UpdateScheduleNextRun(ctx context.Context, id uuid.UUID, next time.Time) error {
	_, err := d.db.ExecContext(ctx, d.db.Rebind(`
		UPDATE report_schedules SET next_run_at = ?, updated_at = ? WHERE id = ?`),
		next.UTC(), time.Now().UTC(), id)
	return err
}
