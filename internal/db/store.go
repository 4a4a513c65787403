package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a report run does not exist.
	ErrNotFound = errors.New("report run not found")
	// ErrTerminalStatus is returned when a completed or failed run is asked
	// to change status.
	ErrTerminalStatus = errors.New("report run is in a terminal status")
	// ErrInvalidTransition is returned for moves the status machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

const runColumns = `id, client_id, business_type, trigger_type, status, date_start, date_end,
	metrics, error_message, created_at, updated_at, completed_at`

// Store persists report runs, their encrypted stage outputs and violations.
type Store struct {
	db     *sqlx.DB
	sealer *Sealer
	logger *zap.Logger
	now    func() time.Time
}

// NewStore wraps an open database. A nil sealer stores plaintext payloads.
func NewStore(dbx *sqlx.DB, sealer *Sealer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sealer == nil {
		sealer = &Sealer{}
	}
	return &Store{db: dbx, sealer: sealer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the tables for the store's driver.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run. ID, status and timestamps are filled when
// unset.
func (s *Store) CreateRun(ctx context.Context, run *ReportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusPending
	}
	if !run.Trigger.Valid() {
		return fmt.Errorf("invalid trigger %q", run.Trigger)
	}
	now := s.now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt

	query := s.db.Rebind(`
		INSERT INTO report_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.ClientID, run.BusinessType, run.Trigger, run.Status,
		run.DateStart, run.DateEnd, run.Metrics, run.ErrorMessage,
		run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report run: %w", err)
	}
	return nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*ReportRun, error) {
	var run ReportRun
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT `+runColumns+` FROM report_runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report run: %w", err)
	}
	return &run, nil
}

// LatestRun returns the most recently created run of a client, whatever
// its status.
func (s *Store) LatestRun(ctx context.Context, clientID string) (*ReportRun, error) {
	var run ReportRun
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`
		SELECT `+runColumns+` FROM report_runs
		WHERE client_id = ?
		ORDER BY created_at DESC
		LIMIT 1`), clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs for client %s", ErrNotFound, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest report run: %w", err)
	}
	return &run, nil
}

// StuckRuns lists non-terminal runs not updated since before.
func (s *Store) StuckRuns(ctx context.Context, before time.Time) ([]ReportRun, error) {
	query, args, err := sqlx.In(`
		SELECT `+runColumns+` FROM report_runs
		WHERE status IN (?) AND updated_at < ?
		ORDER BY updated_at`,
		[]Status{StatusPending, StatusResearching, StatusAnalyzing}, before.UTC())
	if err != nil {
		return nil, err
	}
	var runs []ReportRun
	if err := s.db.SelectContext(ctx, &runs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list stuck runs: %w", err)
	}
	return runs, nil
}

// UpdateStatus moves a run to status to. Terminal runs reject every
// transition with ErrTerminalStatus. errMsg is stored for failed runs.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, errMsg string) error {
	from := allowedFrom[to]
	if len(from) == 0 {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	now := s.now()
	var completedAt *time.Time
	if to.Terminal() {
		completedAt = &now
	}
	if to != StatusFailed {
		errMsg = ""
	}

	query, args, err := sqlx.In(`
		UPDATE report_runs
		SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN (?)`,
		to, errMsg, now, completedAt, id, from)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("Report status updated",
			zap.String("report_id", id.String()),
			zap.String("status", string(to)))
		return nil
	}

	// Nothing matched; explain why.
	var current Status
	err = s.db.GetContext(ctx, &current, s.db.Rebind(`SELECT status FROM report_runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read report status: %w", err)
	}
	if current.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalStatus, id, current)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

// MarkFailed moves a run to failed with a message.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return s.UpdateStatus(ctx, id, StatusFailed, message)
}

func stageAAD(id uuid.UUID, stage Stage) []byte {
	return []byte(id.String() + "/" + string(stage))
}

// SaveStage stores the JSON encoding of v in the run's stage slot,
// replacing any earlier payload.
func (s *Store) SaveStage(ctx context.Context, id uuid.UUID, stage Stage, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s output: %w", stage, err)
	}
	payload, err := s.sealer.Seal(raw, stageAAD(id, stage))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO report_stages (report_id, stage, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_id, stage) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at`),
		id, stage, payload, s.now())
	if err != nil {
		return fmt.Errorf("failed to save %s output: %w", stage, err)
	}
	return nil
}

// LoadStage decodes one stage slot into out. It reports false when the
// slot is empty.
func (s *Store) LoadStage(ctx context.Context, id uuid.UUID, stage Stage, out any) (bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(
		`SELECT payload FROM report_stages WHERE report_id = ? AND stage = ?`), id, stage)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s output: %w", stage, err)
	}
	raw, err := s.sealer.Open(payload, stageAAD(id, stage))
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s output: %w", stage, err)
	}
	return true, nil
}

// StageOutputs returns every stored stage slot of a run, decrypted.
func (s *Store) StageOutputs(ctx context.Context, id uuid.UUID) (map[Stage]json.RawMessage, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(
		`SELECT stage, payload FROM report_stages WHERE report_id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage outputs: %w", err)
	}
	defer rows.Close()

	out := make(map[Stage]json.RawMessage)
	for rows.Next() {
		var stage Stage
		var payload []byte
		if err := rows.Scan(&stage, &payload); err != nil {
			return nil, err
		}
		raw, err := s.sealer.Open(payload, stageAAD(id, stage))
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		out[stage] = json.RawMessage(raw)
	}
	return out, rows.Err()
}

// SaveMetrics replaces the run's metrics document.
func (s *Store) SaveMetrics(ctx context.Context, id uuid.UUID, metrics JSONB) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE report_runs SET metrics = ?, updated_at = ? WHERE id = ?`), metrics, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AddViolations records constraint violations of a run.
func (s *Store) AddViolations(ctx context.Context, id uuid.UUID, violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := tx.Rebind(`
		INSERT INTO report_violations (report_id, stage, rule_id, pattern, snippet, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	now := s.now()
	for _, v := range violations {
		if _, err := tx.ExecContext(ctx, query, id, v.Stage, v.RuleID, v.Pattern, v.Snippet, now); err != nil {
			return fmt.Errorf("failed to record violation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Violations lists the violations of a run in insertion order.
func (s *Store) Violations(ctx context.Context, id uuid.UUID) ([]Violation, error) {
	var out []Violation
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, report_id, stage, rule_id, pattern, snippet, created_at
		FROM report_violations WHERE report_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load violations: %w", err)
	}
	return out, nil
}
