// Package store defines the persistence boundaries of the linkage pipeline:
// where records are read from and where similarity edges are written to.
// In-memory implementations back tests and small runs; the NDJSON sink
// persists edges as a compressed, replayable stream.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/linkage/model"
)

// ErrUnknownCollection is yielded when a source has no such collection.
var ErrUnknownCollection = errors.New("store: unknown collection")

// RecordSource streams records out of a backing store. Iteration order is
// implementation-defined but must be stable for the same store state.
type RecordSource interface {
	FetchRecords(ctx context.Context, collection string, filter func(model.Record) bool) iter.Seq2[model.Record, error]
}

// EdgeSink persists similarity edges. Upsert must be idempotent by edge key:
// writing the same edge twice, in either orientation, stores it once.
type EdgeSink interface {
	Upsert(ctx context.Context, collection string, edges []model.Edge) error
}
