package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
)

// Check reports the state of one dependency.
type Check func(ctx context.Context) error

// HealthChecker runs the registered dependency checks
type HealthChecker struct {
	checks map[string]Check
	now    func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]Check), now: time.Now}
}

// Register adds a named check. Registering a name twice replaces the check.
func (h *HealthChecker) Register(name string, check Check) {
	h.checks[name] = check
}

// PostgresCheck pings the database and runs a trivial query.
func PostgresCheck(db *sql.DB) Check {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		var result int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}
		return nil
	}
}

// GetHealthStatus runs every check and returns the overall status with
// one entry per dependency.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	checks := make(map[string]interface{}, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = map[string]interface{}{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]interface{}{"status": "ok"}
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}, healthy
}

// DatabaseManager handles database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Schema is the DDL the panel needs, applied in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id     TEXT PRIMARY KEY,
		username    TEXT NOT NULL UNIQUE,
		email       TEXT NOT NULL,
		password    TEXT NOT NULL,
		role        TEXT NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT true,
		last_login  TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		role_id     TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL UNIQUE,
		description VARCHAR(200) NOT NULL DEFAULT '',
		properties  JSONB NOT NULL DEFAULT '{"input":{},"control":{}}',
		version     BIGINT NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id          BIGSERIAL PRIMARY KEY,
		type        VARCHAR(50) NOT NULL,
		description VARCHAR(200) NOT NULL DEFAULT '',
		key         VARCHAR(32) NOT NULL UNIQUE,
		status      VARCHAR(20) NOT NULL DEFAULT 'offline',
		ip          VARCHAR(64) NOT NULL DEFAULT '',
		last_seen   TIMESTAMPTZ,
		user_id     TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		commands    JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS input_reports (
		report_id   TEXT PRIMARY KEY,
		project_id  BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		project     TEXT NOT NULL,
		source      TEXT NOT NULL,
		input_values JSONB NOT NULL,
		control     JSONB NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_user_last_seen ON devices (user_id, last_seen DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_input_reports_project_ts ON input_reports (project_id, received_at DESC)`,
}

// CreateTables creates the required tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, query := range Schema {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
