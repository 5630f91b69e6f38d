package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version int
	SQL     string
}

// postgresMigrations creates the snapshot schema on PostgreSQL
var postgresMigrations = []Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		clusters INTEGER NOT NULL,
		seed BIGINT NOT NULL,
		iterations INTEGER NOT NULL,
		inertia DOUBLE PRECISION NOT NULL,
		row_count INTEGER NOT NULL
	)`},
	{Version: 2, SQL: `
	CREATE TABLE IF NOT EXISTS client_features (
		snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		client_id TEXT NOT NULL,
		yearly_income DOUBLE PRECISION NOT NULL,
		total_debt DOUBLE PRECISION NOT NULL,
		credit_score DOUBLE PRECISION NOT NULL,
		num_credit_cards INTEGER NOT NULL,
		total_spent DOUBLE PRECISION NOT NULL,
		avg_transaction DOUBLE PRECISION NOT NULL,
		transaction_count INTEGER NOT NULL,
		spending_ratio DOUBLE PRECISION NOT NULL,
		debt_ratio DOUBLE PRECISION NOT NULL,
		cluster INTEGER NOT NULL CHECK (cluster >= 0 AND cluster < 5),
		persona TEXT NOT NULL,
		income_bracket TEXT NOT NULL,
		spending_percentile DOUBLE PRECISION NOT NULL,
		debt_percentile DOUBLE PRECISION NOT NULL,
		credit_percentile DOUBLE PRECISION NOT NULL,
		persona_spending_percentile DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (snapshot_id, client_id)
	)`},
	{Version: 3, SQL: `CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC)`},
	{Version: 4, SQL: `CREATE INDEX IF NOT EXISTS idx_client_features_cluster ON client_features(snapshot_id, cluster)`},
}

// sqliteMigrations mirrors postgresMigrations with SQLite types. Timestamps are stored
// as fixed-width UTC text so they sort chronologically.
var sqliteMigrations = []Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		clusters INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		inertia REAL NOT NULL,
		row_count INTEGER NOT NULL
	)`},
	{Version: 2, SQL: `
	CREATE TABLE IF NOT EXISTS client_features (
		snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		client_id TEXT NOT NULL,
		yearly_income REAL NOT NULL,
		total_debt REAL NOT NULL,
		credit_score REAL NOT NULL,
		num_credit_cards INTEGER NOT NULL,
		total_spent REAL NOT NULL,
		avg_transaction REAL NOT NULL,
		transaction_count INTEGER NOT NULL,
		spending_ratio REAL NOT NULL,
		debt_ratio REAL NOT NULL,
		cluster INTEGER NOT NULL CHECK (cluster >= 0 AND cluster < 5),
		persona TEXT NOT NULL,
		income_bracket TEXT NOT NULL,
		spending_percentile REAL NOT NULL,
		debt_percentile REAL NOT NULL,
		credit_percentile REAL NOT NULL,
		persona_spending_percentile REAL NOT NULL,
		PRIMARY KEY (snapshot_id, client_id)
	)`},
	{Version: 3, SQL: `CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC)`},
	{Version: 4, SQL: `CREATE INDEX IF NOT EXISTS idx_client_features_cluster ON client_features(snapshot_id, cluster)`},
}

// RunMigrations applies every migration not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sql.DB, d *dialect, log logrus.FieldLogger) error {
	log = log.WithField("component", "migration")

	// Create migration tracking table
	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, migration := range d.migrations {
		applied, err := isMigrationApplied(ctx, db, d, migration.Version)
		if err != nil {
			return err
		}

		if applied {
			log.WithField("version", migration.Version).Debug("Migration already applied")
			continue
		}

		log.WithField("version", migration.Version).Info("Applying migration")
		if err := applyMigration(ctx, db, d, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func isMigrationApplied(ctx context.Context, db *sql.DB, d *dialect, version int) (bool, error) {
	var count int
	query := d.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`)
	if err := db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return count > 0, nil
}

func applyMigration(ctx context.Context, db *sql.DB, d *dialect, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	record := d.rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, record, migration.Version, formatTime(nowUTC())); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
