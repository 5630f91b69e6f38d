// Package storage persists clustering snapshots. A snapshot is written once and never
// patched; servers load the latest one, or a pinned id, at start.
package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/types"
)

// SnapshotStore saves and loads clustering snapshots
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error
	LoadSnapshot(ctx context.Context, id string) (*types.Snapshot, error)
	LoadLatest(ctx context.Context) (*types.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]types.SnapshotInfo, error)
	Close() error
}

// NewStore opens the store selected by cfg.Driver
func NewStore(ctx context.Context, cfg *config.StorageConfig, log logrus.FieldLogger) (SnapshotStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, &cfg.PostgreSQL, log)
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLite.Path, log)
	case config.DriverCSV:
		store, err := NewCSVStore(cfg.CSV.Dir, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Load returns the snapshot with the given id, or the latest one when id is empty
func Load(ctx context.Context, store SnapshotStore, id string) (*types.Snapshot, error) {
	if id == "" {
		return store.LoadLatest(ctx)
	}
	return store.LoadSnapshot(ctx, id)
}

func validateSnapshot(s *types.Snapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if s.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("snapshot %s: %w", s.ID, types.ErrEmptyTable)
	}
	if s.RowCount != len(s.Rows) {
		return fmt.Errorf("snapshot %s: row_count %d does not match %d rows", s.ID, s.RowCount, len(s.Rows))
	}
	return nil
}
