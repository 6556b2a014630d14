package annstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annstore/hnsw"
	"github.com/hupe1980/annstore/store"
)

var (
	// ErrValidation is matched by every caller error: wrong dimensionality,
	// negative labels, non-positive k or an invalid key.
	ErrValidation = errors.New("annstore: validation failed")

	// ErrCapacityExceeded is returned when a batch still does not fit after the
	// graph has been grown. It indicates a bug.
	ErrCapacityExceeded = errors.New("annstore: capacity exceeded after growth")

	// ErrSearchInfeasible marks a search that returned fewer than k results.
	// The manager recovers from it and never returns it from Search.
	ErrSearchInfeasible = errors.New("annstore: search infeasible")

	// ErrIndexUnavailable is returned when an index does not exist and the
	// operation may not create it.
	ErrIndexUnavailable = errors.New("annstore: index unavailable")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("annstore: manager closed")
)

// DimensionMismatchError indicates a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("annstore: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes every DimensionMismatchError match ErrValidation.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrValidation }

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

// StorageError reports a snapshot that is missing, unreadable or corrupt.
type StorageError struct {
	Key     IndexKey
	Corrupt bool
	cause   error
}

func (e *StorageError) Error() string {
	if e.Corrupt {
		return fmt.Sprintf("annstore: corrupt index %s: %v", e.Key, e.cause)
	}
	return fmt.Sprintf("annstore: storage failure for index %s: %v", e.Key, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateError maps engine and store errors into the public taxonomy.
func translateError(key IndexKey, err error) error {
	if err == nil {
		return nil
	}

	var ce *store.CorruptSnapshotError
	if errors.As(err, &ce) {
		return &StorageError{Key: key, Corrupt: true, cause: err}
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &DimensionMismatchError{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, hnsw.ErrInvalidLabel) || errors.Is(err, hnsw.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if errors.Is(err, hnsw.ErrCapacityExceeded) {
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}
	if errors.Is(err, hnsw.ErrSearchInfeasible) {
		return fmt.Errorf("%w: %w", ErrSearchInfeasible, err)
	}
	if errors.Is(err, store.ErrSnapshotNotFound) {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	return &StorageError{Key: key, cause: err}
}
