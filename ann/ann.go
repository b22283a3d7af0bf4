// Package ann provides nearest-neighbor vector retrieval for the vector
// blocking strategy.
//
// BruteForce is the guaranteed-correct reference implementation: it serves
// both as the production fallback and as the correctness oracle for any
// accelerated index. Sharded partitions the same exact computation across
// parallel shards and therefore satisfies the oracle contract by
// construction.
package ann

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/linkage/model"
)

var (
	// ErrInvalidLimit is returned when the requested result limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrNotFound is returned when a queried record ID is not in the index.
	ErrNotFound = errors.New("record not found in index")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Result is a single neighbor with its cosine similarity to the query.
type Result struct {
	ID         model.RecordID
	Similarity float64
}

// Filter restricts a search to IDs for which it returns true.
// A nil Filter admits every ID.
type Filter func(id model.RecordID) bool

// Index is the contract for nearest-neighbor retrieval.
//
// Accelerated implementations must, for any query and dataset, return
// similarity values within a small epsilon of BruteForce and share at least
// one of its top-3 neighbors for non-degenerate inputs.
type Index interface {
	// Add inserts or replaces the vector stored for id.
	Add(id model.RecordID, vector []float32) error

	// Search returns up to limit neighbors of query with cosine similarity
	// >= threshold, sorted by descending similarity (ties by ascending ID).
	Search(ctx context.Context, query []float32, threshold float64, limit int, filter Filter) ([]Result, error)

	// SearchByID is Search with the stored vector of id as the query.
	// The queried record itself is excluded from the results.
	SearchByID(ctx context.Context, id model.RecordID, threshold float64, limit int, filter Filter) ([]Result, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the fixed vector dimensionality, or 0 while empty.
	Dimension() int
}
