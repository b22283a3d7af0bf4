package linkage

import (
	"errors"
	"fmt"
)

var (
	// ErrNilBlocker is returned when the pipeline is built without a
	// blocking engine.
	ErrNilBlocker = errors.New("blocking engine is required")

	// ErrNilScorer is returned when the pipeline is built without a scorer.
	ErrNilScorer = errors.New("scorer is required")

	// ErrNilClusterer is returned when the pipeline is built without a
	// clustering engine.
	ErrNilClusterer = errors.New("clustering engine is required")

	// ErrNoRecords is returned when a run is started with no records.
	ErrNoRecords = errors.New("at least one record is required")
)

// ErrDuplicateRecordID indicates that two input records carry the same ID.
// Record IDs are the node identity of the similarity graph, so duplicates
// are rejected before any processing begins.
type ErrDuplicateRecordID struct {
	ID string
}

func (e *ErrDuplicateRecordID) Error() string {
	return fmt.Sprintf("duplicate record id: %q", e.ID)
}

// StageError wraps a failure with the pipeline stage it occurred in.
//
// The original underlying error can be accessed via errors.Unwrap.
type StageError struct {
	Stage string
	cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.cause)
}

func (e *StageError) Unwrap() error { return e.cause }
