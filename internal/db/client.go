package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver          string
	DSN             string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
}

// Open connects to the store database and verifies it with a ping.
func Open(ctx context.Context, config Config, logger *zap.Logger) (*sqlx.DB, error) {
	if config.MaxConnections == 0 {
		config.MaxConnections = 25
	}
	if config.IdleConnections == 0 {
		config.IdleConnections = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 5 * time.Minute
	}

	switch config.Driver {
	case DriverPostgres:
	case DriverSQLite:
		// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
		config.MaxConnections = 1
		config.IdleConnections = 1
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Driver)
	}

	dbx, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	dbx.SetMaxOpenConns(config.MaxConnections)
	dbx.SetMaxIdleConns(config.IdleConnections)
	dbx.SetConnMaxLifetime(config.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbx.PingContext(pingCtx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if config.Driver == DriverSQLite {
		if _, err := dbx.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			dbx.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	logger.Info("Database client initialized",
		zap.String("driver", config.Driver),
		zap.Int("max_connections", config.MaxConnections),
	)
	return dbx, nil
}
