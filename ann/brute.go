package ann

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/hupe1980/linkage/distance"
	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Index = (*BruteForce)(nil)

// BruteForce is an exact nearest-neighbor index: every search computes the
// cosine similarity between the query and each stored vector.
//
// It is safe for concurrent use. Reads take a shared lock; the stored
// vectors are never mutated after insertion.
type BruteForce struct {
	mu      sync.RWMutex
	ids     []model.RecordID // insertion order, for deterministic iteration
	vectors map[model.RecordID][]float32
	dim     int
}

// NewBruteForce creates an empty exact index. The dimensionality is fixed by
// the first vector added.
func NewBruteForce() *BruteForce {
	return &BruteForce{
		vectors: make(map[model.RecordID][]float32),
	}
}

// Add inserts or replaces the vector stored for id.
func (b *BruteForce) Add(id model.RecordID, vector []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dim == 0 {
		b.dim = len(vector)
	} else if len(vector) != b.dim {
		return &ErrDimensionMismatch{Expected: b.dim, Actual: len(vector)}
	}

	if _, exists := b.vectors[id]; !exists {
		b.ids = append(b.ids, id)
	}
	b.vectors[id] = slices.Clone(vector)
	return nil
}

// Len returns the number of stored vectors.
func (b *BruteForce) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vectors)
}

// Dimension returns the fixed vector dimensionality, or 0 while empty.
func (b *BruteForce) Dimension() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dim
}

// Vector returns a copy of the vector stored for id.
func (b *BruteForce) Vector(id model.RecordID) ([]float32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vectors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Search scans every stored vector, keeps those with similarity >= threshold
// admitted by filter, and returns the top limit sorted by descending
// similarity with ties broken by ascending ID.
func (b *BruteForce) Search(ctx context.Context, query []float32, threshold float64, limit int, filter Filter) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.dim != 0 && len(query) != b.dim {
		return nil, &ErrDimensionMismatch{Expected: b.dim, Actual: len(query)}
	}

	results := make([]Result, 0, limit)
	for _, id := range b.ids {
		if filter != nil && !filter(id) {
			continue
		}
		sim := distance.CosineSimilarity(query, b.vectors[id])
		if sim < threshold {
			continue
		}
		results = append(results, Result{ID: id, Similarity: sim})
	}

	SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchByID is Search with the stored vector of id as the query, excluding
// the record itself from the results.
func (b *BruteForce) SearchByID(ctx context.Context, id model.RecordID, threshold float64, limit int, filter Filter) ([]Result, error) {
	query, err := b.Vector(id)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, query, threshold, limit, excludeSelf(id, filter))
}

func excludeSelf(self model.RecordID, filter Filter) Filter {
	return func(id model.RecordID) bool {
		if id == self {
			return false
		}
		return filter == nil || filter(id)
	}
}

// SortResults orders results by descending similarity, breaking ties by
// ascending ID so that equal-similarity neighbors have a stable order.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID.Less(results[j].ID)
	})
}
