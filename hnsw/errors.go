package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when a batch needs more free slots than the graph holds.
	// The graph is left unchanged.
	ErrCapacityExceeded = errors.New("hnsw: capacity exceeded")

	// ErrSearchInfeasible is returned when fewer than k live neighbours were reachable.
	// The partial result is still returned, padded with NoLabel.
	ErrSearchInfeasible = errors.New("hnsw: cannot return k results, ef or M too small")

	// ErrLabelExists is returned when inserting a label that is live in the graph.
	ErrLabelExists = errors.New("hnsw: label already present")

	// ErrDuplicateLabel is returned when a batch names the same label twice.
	ErrDuplicateLabel = errors.New("hnsw: duplicate label in batch")

	// ErrInvalidLabel is returned for negative labels, which are reserved.
	ErrInvalidLabel = errors.New("hnsw: labels must be non-negative")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("hnsw: k must be positive")

	// ErrCorrupt is returned when a serialized graph cannot be decoded.
	ErrCorrupt = errors.New("hnsw: corrupt graph data")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCapacityTooSmall is returned by Resize when the requested capacity
// cannot hold the slots already in use.
type ErrCapacityTooSmall struct {
	Requested int
	InUse     int
}

func (e *ErrCapacityTooSmall) Error() string {
	return fmt.Sprintf("hnsw: cannot resize to %d, %d slots in use", e.Requested, e.InUse)
}
