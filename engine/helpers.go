package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fintech-community/peerbench/engine/ledger"
	"github.com/fintech-community/peerbench/engine/metrics"
	"github.com/fintech-community/peerbench/engine/storage"
	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func metricsEnvironment() metrics.EnvironmentInfo {
	return metrics.Environment()
}

// openStore opens the configured snapshot store
func openStore(ctx context.Context) (storage.SnapshotStore, error) {
	store, err := storage.NewStore(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}

// loadTable builds the feature table from a clustered CSV file when tablePath is set,
// otherwise from the store. An empty snapshotID falls back to the configured one, then
// to the latest snapshot.
func loadTable(ctx context.Context, tablePath, snapshotID string) (*table.FeatureTable, error) {
	if tablePath != "" {
		rows, err := readFeatureFile(tablePath)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(filepath.Base(tablePath), filepath.Ext(tablePath))
		return table.New(id, rows)
	}

	if snapshotID == "" {
		snapshotID = cfg.Storage.SnapshotID
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	snapshot, err := storage.Load(ctx, store, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	log.WithFields(logrus.Fields{
		"snapshot_id": snapshot.ID,
		"rows":        snapshot.RowCount,
		"created_at":  snapshot.CreatedAt,
	}).Info("Loaded snapshot")

	return table.FromSnapshot(snapshot)
}

func readFeatureFile(path string) ([]types.ClientFeatureRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file: %w", err)
	}
	defer f.Close()

	rows, err := storage.ReadRowsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// aggregateLedger reads a raw ledger and returns per-client feature rows, logging every
// client rejected for degenerate income
func aggregateLedger(path string) (*ledger.AggregateResult, error) {
	txns, err := ledger.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"path":         path,
		"transactions": len(txns),
	}).Info("Read ledger")

	result := ledger.NewAggregator(log).Aggregate(txns)
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("ledger %s: %w", path, types.ErrEmptyTable)
	}
	return result, nil
}

func clusterSizes(t *table.FeatureTable) (map[int]int, map[int]string) {
	sizes := make(map[int]int, types.ClusterCount)
	personas := make(map[int]string, types.ClusterCount)
	for _, c := range t.Clusters() {
		sizes[c] = t.ClusterSize(c)
		personas[c] = types.PersonaFor(c)
	}
	return sizes, personas
}
