package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/fintech-community/peerbench/engine/types"
)

const (
	rowsExt = ".csv"
	metaExt = ".meta.yaml"
)

// snapshotMeta is the YAML sidecar describing a CSV snapshot
type snapshotMeta struct {
	ID         string    `yaml:"id"`
	CreatedAt  time.Time `yaml:"created_at"`
	Clusters   int       `yaml:"clusters"`
	Seed       int64     `yaml:"seed"`
	Iterations int       `yaml:"iterations"`
	Inertia    float64   `yaml:"inertia"`
	RowCount   int       `yaml:"row_count"`
}

func (m *snapshotMeta) info() types.SnapshotInfo {
	return types.SnapshotInfo{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt.UTC(),
		Clusters:   m.Clusters,
		Seed:       m.Seed,
		Iterations: m.Iterations,
		Inertia:    m.Inertia,
		RowCount:   m.RowCount,
	}
}

// CSVStore keeps each snapshot as <id>.csv with a <id>.meta.yaml sidecar
type CSVStore struct {
	dir string
	log logrus.FieldLogger
}

// NewCSVStore creates the directory if needed
func NewCSVStore(dir string, log logrus.FieldLogger) (*CSVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv store directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &CSVStore{
		dir: dir,
		log: log.WithField("component", "csv-store"),
	}, nil
}

// SaveSnapshot writes rows first and the sidecar last, so a snapshot is only listed once
// its rows are complete
func (s *CSVStore) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	if strings.ContainsAny(snapshot.ID, `/\`) {
		return fmt.Errorf("snapshot id %q contains a path separator", snapshot.ID)
	}
	if _, err := os.Stat(s.metaPath(snapshot.ID)); err == nil {
		return fmt.Errorf("snapshot %s already exists", snapshot.ID)
	}

	if err := writeFileAtomic(s.rowsPath(snapshot.ID), func(w io.Writer) error {
		return WriteRowsCSV(w, snapshot.Rows)
	}); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	meta := snapshotMeta{
		ID:         snapshot.ID,
		CreatedAt:  snapshot.CreatedAt.UTC(),
		Clusters:   snapshot.Clusters,
		Seed:       snapshot.Seed,
		Iterations: snapshot.Iterations,
		Inertia:    snapshot.Inertia,
		RowCount:   snapshot.RowCount,
	}
	if err := writeFileAtomic(s.metaPath(snapshot.ID), func(w io.Writer) error {
		return yaml.NewEncoder(w).Encode(&meta)
	}); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"snapshot_id": snapshot.ID,
		"rows":        snapshot.RowCount,
		"dir":         s.dir,
	}).Info("Saved snapshot")
	return nil
}

// LoadSnapshot reads a snapshot by id
func (s *CSVStore) LoadSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	meta, err := s.readMeta(s.metaPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %q: %w", id, types.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.rowsPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to open rows of snapshot %q: %w", id, err)
	}
	defer f.Close()

	rows, err := ReadRowsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", id, err)
	}
	if len(rows) != meta.RowCount {
		return nil, fmt.Errorf("snapshot %q is incomplete: %d of %d rows", id, len(rows), meta.RowCount)
	}

	info := meta.info()
	return &types.Snapshot{
		ID:         info.ID,
		CreatedAt:  info.CreatedAt,
		Clusters:   info.Clusters,
		Seed:       info.Seed,
		Iterations: info.Iterations,
		Inertia:    info.Inertia,
		RowCount:   info.RowCount,
		Rows:       rows,
	}, nil
}

// LoadLatest reads the most recently created snapshot
func (s *CSVStore) LoadLatest(ctx context.Context) (*types.Snapshot, error) {
	infos, err := s.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no snapshots in %s: %w", s.dir, types.ErrSnapshotNotFound)
	}
	return s.LoadSnapshot(ctx, infos[0].ID)
}

// ListSnapshots returns snapshot metadata, newest first
func (s *CSVStore) ListSnapshots(ctx context.Context) ([]types.SnapshotInfo, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+metaExt))
	if err != nil {
		return nil, err
	}

	infos := make([]types.SnapshotInfo, 0, len(paths))
	for _, path := range paths {
		meta, err := s.readMeta(path)
		if err != nil {
			return nil, err
		}
		infos = append(infos, meta.info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID > infos[j].ID
	})
	return infos, nil
}

// Close is a no-op
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) rowsPath(id string) string {
	return filepath.Join(s.dir, id+rowsExt)
}

func (s *CSVStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+metaExt)
}

func (s *CSVStore) readMeta(path string) (*snapshotMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta snapshotMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &meta, nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteRowsCSV writes feature rows with a header line
func WriteRowsCSV(w io.Writer, rows []types.ClientFeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(featureColumns); err != nil {
		return err
	}

	record := make([]string, len(featureColumns))
	for i := range rows {
		for j, v := range rowValues(&rows[i]) {
			record[j] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadRowsCSV reads feature rows written by WriteRowsCSV. Columns are matched by header
// name; unknown columns are ignored and missing ones are an error.
func ReadRowsCSV(r io.Reader) ([]types.ClientFeatureRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("feature file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	positions := make([]int, len(featureColumns))
	for i, name := range featureColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
		positions[i] = pos
	}

	var rows []types.ClientFeatureRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var row types.ClientFeatureRow
		targets := rowTargets(&row)
		for i, pos := range positions {
			if err := parseInto(targets[i], strings.TrimSpace(record[pos])); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, featureColumns[i], err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
