package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/types"
)

var postgresDialect = &dialect{
	name:       config.DriverPostgres,
	migrations: postgresMigrations,
	numbered:   true,
	encodeTime: func(t time.Time) any { return t.UTC() },
	insertRows: copyRows,
}

// NewPostgresStore connects to PostgreSQL and applies migrations
func NewPostgresStore(ctx context.Context, cfg *config.PostgreSQLConfig, log logrus.FieldLogger) (SnapshotStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgresql config: %w", err)
	}
	return OpenPostgres(ctx, cfg.ConnectionString(), cfg.MaxOpenConns, cfg.MaxIdleConns, log)
}

// OpenPostgres connects using a raw connection string
func OpenPostgres(ctx context.Context, connStr string, maxOpen, maxIdle int, log logrus.FieldLogger) (SnapshotStore, error) {
	log = log.WithField("component", "postgres")

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(ctx, db, postgresDialect, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Connected to PostgreSQL database")
	return &sqlStore{db: db, dialect: postgresDialect, log: log}, nil
}

// copyRows bulk-loads feature rows with COPY
func copyRows(ctx context.Context, tx *sql.Tx, snapshotID string, rows []types.ClientFeatureRow) error {
	columns := append([]string{"snapshot_id"}, featureColumns...)
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("client_features", columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for i := range rows {
		args := append([]any{snapshotID}, rowValues(&rows[i])...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %q: %w", rows[i].ClientID, err)
		}
	}

	// Flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	return stmt.Close()
}
