package db

const postgresSchema = `
CREATE TABLE IF NOT EXISTS report_runs (
	id            UUID PRIMARY KEY,
	client_id     TEXT NOT NULL,
	business_type TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	status        TEXT NOT NULL,
	date_start    TEXT NOT NULL,
	date_end      TEXT NOT NULL,
	metrics       JSONB NOT NULL DEFAULT '{}'::jsonb,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_report_runs_client_created ON report_runs (client_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_report_runs_status ON report_runs (status, updated_at);

CREATE TABLE IF NOT EXISTS report_stages (
	report_id  UUID NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
	stage      TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (report_id, stage)
);

CREATE TABLE IF NOT EXISTS report_violations (
	id         BIGSERIAL PRIMARY KEY,
	report_id  UUID NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
	stage      TEXT NOT NULL,
	rule_id    TEXT NOT NULL,
	pattern    TEXT NOT NULL DEFAULT '',
	snippet    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_violations_rule ON report_violations (rule_id, created_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS report_runs (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	business_type TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	status        TEXT NOT NULL,
	date_start    TEXT NOT NULL,
	date_end      TEXT NOT NULL,
	metrics       TEXT NOT NULL DEFAULT '{}',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_report_runs_client_created ON report_runs (client_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_report_runs_status ON report_runs (status, updated_at);

CREATE TABLE IF NOT EXISTS report_stages (
	report_id  TEXT NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
	stage      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (report_id, stage)
);

CREATE TABLE IF NOT EXISTS report_violations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id  TEXT NOT NULL REFERENCES report_runs(id) ON DELETE CASCADE,
	stage      TEXT NOT NULL,
	rule_id    TEXT NOT NULL,
	pattern    TEXT NOT NULL DEFAULT '',
	snippet    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_violations_rule ON report_violations (rule_id, created_at);
`
