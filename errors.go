package vexdb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("vexdb: k must be positive")

	// ErrInvalidDimension is returned when an index is created with a
	// non-positive dimension.
	ErrInvalidDimension = errors.New("vexdb: dimension must be positive")

	// ErrNotSupported is returned by best-effort acceleration paths
	// (GPU brute force) when the capability is unavailable. Callers fall
	// back to the CPU path.
	ErrNotSupported = errors.New("vexdb: not supported")

	// ErrNoVectorStorage is returned when an operation that needs raw
	// vectors runs against a fast-insert index.
	ErrNoVectorStorage = errors.New("vexdb: vector storage disabled")

	// ErrNotFound is returned when an ID is not live.
	ErrNotFound = errors.New("vexdb: id not found")

	// ErrIDExists is returned when inserting an ID that is already live.
	// Use Update for replace semantics.
	ErrIDExists = errors.New("vexdb: id already exists")
)

// DimensionMismatchError reports a query/vector length that does not match
// the index dimension. It is used as a panic value: a mismatch is a caller
// bug, not a recoverable runtime state.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vexdb: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// assertDimension panics if v does not match the index dimension.
// Contract violations fail loudly and immediately; silent recovery would
// hide caller defects.
func assertDimension(expected int, v []float32) {
	if len(v) != expected {
		panic(&DimensionMismatchError{Expected: expected, Actual: len(v)})
	}
}
