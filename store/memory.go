package store

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/hupe1980/linkage/model"
)

// Compile time check to ensure MemorySource satisfies the RecordSource interface.
var _ RecordSource = (*MemorySource)(nil)

// MemorySource is an in-memory record source keyed by collection name.
// It is safe for concurrent use.
type MemorySource struct {
	mu          sync.RWMutex
	collections map[string][]model.Record
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{collections: make(map[string][]model.Record)}
}

// Add appends records to a collection, creating it on first use.
func (s *MemorySource) Add(collection string, records ...model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], records...)
}

// FetchRecords streams the collection's records in insertion order. Records
// rejected by the filter are skipped. An unknown collection yields a single
// ErrUnknownCollection.
func (s *MemorySource) FetchRecords(ctx context.Context, collection string, filter func(model.Record) bool) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		s.mu.RLock()
		records, ok := s.collections[collection]
		// Snapshot under the lock so concurrent Adds cannot race iteration.
		snapshot := make([]model.Record, len(records))
		copy(snapshot, records)
		s.mu.RUnlock()

		if !ok {
			yield(model.Record{}, ErrUnknownCollection)
			return
		}

		for _, rec := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(model.Record{}, err)
				return
			}
			if filter != nil && !filter(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Compile time check to ensure MemorySink satisfies the EdgeSink interface.
var _ EdgeSink = (*MemorySink)(nil)

// MemorySink is an in-memory edge sink, idempotent by edge key.
// It is safe for concurrent use.
type MemorySink struct {
	mu          sync.RWMutex
	collections map[string]map[string]model.Edge
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{collections: make(map[string]map[string]model.Edge)}
}

// Upsert stores the edges, replacing any prior edge with the same key.
func (s *MemorySink) Upsert(ctx context.Context, collection string, edges []model.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]model.Edge, len(edges))
		s.collections[collection] = c
	}
	for _, edge := range edges {
		c[edge.Key()] = edge
	}
	return nil
}

// Edges returns the collection's edges sorted by key.
func (s *MemorySink) Edges(collection string) []model.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.collections[collection]
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	edges := make([]model.Edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, c[k])
	}
	return edges
}

// Len returns the number of distinct edges in the collection.
func (s *MemorySink) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
