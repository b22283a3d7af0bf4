package block

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Strategy = (*SortedNeighborhood)(nil)

// SortedNeighborhoodOptions configures the sorted-neighborhood strategy.
type SortedNeighborhoodOptions struct {
	// Field is the sort key. Records missing it are excluded.
	Field string

	// WindowSize is the width of the sliding window. Default 5.
	WindowSize int
}

// SortedNeighborhood sorts records by a canonicalized key and emits all pairs
// within a fixed-size sliding window, catching near-misses that exact
// grouping would separate.
type SortedNeighborhood struct {
	opts SortedNeighborhoodOptions
}

// NewSortedNeighborhood creates a sorted-neighborhood strategy over the
// given sort field.
func NewSortedNeighborhood(field string, optFns ...func(o *SortedNeighborhoodOptions)) (*SortedNeighborhood, error) {
	opts := SortedNeighborhoodOptions{Field: field, WindowSize: 5}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Field == "" {
		return nil, errors.New("sorted_neighborhood: field is required")
	}
	if opts.WindowSize < 2 {
		return nil, fmt.Errorf("sorted_neighborhood: window size must be >= 2, got %d", opts.WindowSize)
	}
	return &SortedNeighborhood{opts: opts}, nil
}

func (s *SortedNeighborhood) Name() string { return "sorted_neighborhood" }

// Generate sorts by key and slides the window. Ties sort by record ID so the
// emitted pair set is deterministic.
func (s *SortedNeighborhood) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type keyed struct {
		key string
		id  model.RecordID
	}
	sorted := make([]keyed, 0, len(records))
	for _, rec := range records {
		raw, ok := rec.StringField(s.opts.Field)
		if !ok {
			continue
		}
		key := canonicalize(raw)
		if key == "" {
			continue
		}
		sorted = append(sorted, keyed{key: key, id: rec.ID})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].key != sorted[j].key {
			return sorted[i].key < sorted[j].key
		}
		return sorted[i].id.Less(sorted[j].id)
	})

	w := s.opts.WindowSize
	for i := range sorted {
		for j := i + 1; j < len(sorted) && j < i+w; j++ {
			key := fmt.Sprintf("window@%d", i)
			if err := sink.Emit(model.NewCandidatePair(sorted[i].id, sorted[j].id, s.Name(), key)); err != nil {
				return err
			}
		}
	}
	return nil
}
