package types

import "errors"

var (
	// ErrNotFound is returned by match-by-id for an unknown client id
	ErrNotFound = errors.New("client not found")

	// ErrDegenerateInput marks a client whose income-derived ratios cannot be computed
	ErrDegenerateInput = errors.New("degenerate input: yearly income must be positive")

	// ErrEmptyTable is returned when an operation needs at least one row
	ErrEmptyTable = errors.New("feature table is empty")

	// ErrInvalidProfile is returned for malformed profile parameters
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrSnapshotNotFound is returned by stores when no snapshot matches
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
