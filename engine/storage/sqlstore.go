package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/types"
)

// timeLayout is fixed-width so text timestamps sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// dialect captures what differs between the SQL backends
type dialect struct {
	name       string
	migrations []Migration

	// numbered switches ? placeholders to $1, $2, ...
	numbered bool

	encodeTime func(time.Time) any
	insertRows func(ctx context.Context, tx *sql.Tx, snapshotID string, rows []types.ClientFeatureRow) error
}

// rebind rewrites ? placeholders for dialects that number them
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return time.Parse(timeLayout, v)
	case []byte:
		return time.Parse(timeLayout, string(v))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", src)
	}
}

// sqlStore implements SnapshotStore over database/sql
type sqlStore struct {
	db      *sql.DB
	dialect *dialect
	log     logrus.FieldLogger
}

const snapshotColumns = "id, created_at, clusters, seed, iterations, inertia, row_count"

// SaveSnapshot writes the snapshot and its rows in one transaction
func (s *sqlStore) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.rebind(`INSERT INTO snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		snapshot.ID, s.dialect.encodeTime(snapshot.CreatedAt), snapshot.Clusters, snapshot.Seed,
		snapshot.Iterations, snapshot.Inertia, snapshot.RowCount,
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := s.dialect.insertRows(ctx, tx, snapshot.ID, snapshot.Rows); err != nil {
		return fmt.Errorf("failed to insert feature rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"driver":      s.dialect.name,
		"snapshot_id": snapshot.ID,
		"rows":        snapshot.RowCount,
	}).Info("Saved snapshot")
	return nil
}

// LoadSnapshot reads one snapshot with its rows in client id order
func (s *sqlStore) LoadSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	query := s.dialect.rebind(`SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ?`)
	info, err := scanInfo(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", id, types.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", id, err)
	}

	rowsQuery := s.dialect.rebind(`SELECT ` + strings.Join(featureColumns, ", ") +
		` FROM client_features WHERE snapshot_id = ? ORDER BY client_id`)
	rows, err := s.db.QueryContext(ctx, rowsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature rows: %w", err)
	}
	defer rows.Close()

	snapshot := &types.Snapshot{
		ID:         info.ID,
		CreatedAt:  info.CreatedAt,
		Clusters:   info.Clusters,
		Seed:       info.Seed,
		Iterations: info.Iterations,
		Inertia:    info.Inertia,
		RowCount:   info.RowCount,
		Rows:       make([]types.ClientFeatureRow, 0, info.RowCount),
	}
	for rows.Next() {
		var row types.ClientFeatureRow
		if err := rows.Scan(rowTargets(&row)...); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feature rows: %w", err)
	}

	if len(snapshot.Rows) != snapshot.RowCount {
		return nil, fmt.Errorf("snapshot %q is incomplete: %d of %d rows", id, len(snapshot.Rows), snapshot.RowCount)
	}

	s.log.WithFields(logrus.Fields{
		"snapshot_id": id,
		"rows":        len(snapshot.Rows),
	}).Debug("Loaded snapshot")
	return snapshot, nil
}

// LoadLatest reads the most recently created snapshot
func (s *sqlStore) LoadLatest(ctx context.Context) (*types.Snapshot, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no snapshots stored: %w", types.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return s.LoadSnapshot(ctx, id)
}

// ListSnapshots returns snapshot metadata, newest first
func (s *sqlStore) ListSnapshots(ctx context.Context) ([]types.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []types.SnapshotInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		infos = append(infos, *info)
	}
	return infos, rows.Err()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (*types.SnapshotInfo, error) {
	var info types.SnapshotInfo
	var createdAt any
	if err := row.Scan(&info.ID, &createdAt, &info.Clusters, &info.Seed,
		&info.Iterations, &info.Inertia, &info.RowCount); err != nil {
		return nil, err
	}
	t, err := decodeTime(createdAt)
	if err != nil {
		return nil, err
	}
	info.CreatedAt = t
	return &info, nil
}
