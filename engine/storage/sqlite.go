package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/types"
)

var sqliteDialect = &dialect{
	name:       config.DriverSQLite,
	migrations: sqliteMigrations,
	encodeTime: func(t time.Time) any { return formatTime(t) },
	insertRows: insertRows,
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path. Pass ":memory:"
// for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, log logrus.FieldLogger) (SnapshotStore, error) {
	log = log.WithField("component", "sqlite")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases and pragmas consistent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := RunMigrations(ctx, db, sqliteDialect, log); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("Opened SQLite snapshot store")
	return &sqlStore{db: db, dialect: sqliteDialect, log: log}, nil
}

// insertRows writes feature rows through one prepared statement
func insertRows(ctx context.Context, tx *sql.Tx, snapshotID string, rows []types.ClientFeatureRow) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(featureColumns)+1), ", ")
	query := `INSERT INTO client_features (snapshot_id, ` + strings.Join(featureColumns, ", ") +
		`) VALUES (` + placeholders + `)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		args := append([]any{snapshotID}, rowValues(&rows[i])...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %q: %w", rows[i].ClientID, err)
		}
	}
	return nil
}
