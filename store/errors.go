package store

import (
	"errors"
	"fmt"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists locally or in the mirror.
var ErrSnapshotNotFound = errors.New("store: snapshot not found")

// CorruptSnapshotError is returned when a snapshot or its sidecar exists but cannot be decoded.
type CorruptSnapshotError struct {
	Path string
	Err  error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("store: corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() error { return e.Err }
