package ann

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/linkage/model"
)

func newPopulatedBruteForce(t *testing.T) *BruteForce {
	t.Helper()
	idx := NewBruteForce()
	vectors := map[model.RecordID][]float32{
		"a": {1, 0, 0},
		"b": {0.9, 0.1, 0},
		"c": {0, 1, 0},
		"d": {0, 0, 1},
		"e": {0.7, 0.7, 0},
	}
	for id, v := range vectors {
		require.NoError(t, idx.Add(id, v))
	}
	return idx
}

func TestBruteForceSearch(t *testing.T) {
	idx := newPopulatedBruteForce(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0.5, 10, nil)
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Equal(t, model.RecordID("a"), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)

	// Sorted by descending similarity.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	// Threshold respected.
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
	}
}

func TestBruteForceSearchLimit(t *testing.T) {
	idx := newPopulatedBruteForce(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, -1, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 0, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestBruteForceSearchFilter(t *testing.T) {
	idx := newPopulatedBruteForce(t)

	allowed := map[model.RecordID]bool{"c": true, "d": true}
	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, -1, 10, func(id model.RecordID) bool {
		return allowed[id]
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, allowed[r.ID])
	}
}

func TestBruteForceZeroVector(t *testing.T) {
	idx := NewBruteForce()
	require.NoError(t, idx.Add("zero", []float32{0, 0, 0}))
	require.NoError(t, idx.Add("unit", []float32{1, 0, 0}))

	// A zero query matches nothing above threshold 0.1 and must not error.
	results, err := idx.Search(context.Background(), []float32{0, 0, 0}, 0.1, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBruteForceDimensionMismatch(t *testing.T) {
	idx := newPopulatedBruteForce(t)

	var dimErr *ErrDimensionMismatch

	err := idx.Add("bad", []float32{1, 2})
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	_, err = idx.Search(context.Background(), []float32{1, 2}, 0, 5, nil)
	assert.ErrorAs(t, err, &dimErr)
}

func TestBruteForceSearchByID(t *testing.T) {
	idx := newPopulatedBruteForce(t)

	results, err := idx.SearchByID(context.Background(), "a", 0.5, 10, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, model.RecordID("a"), r.ID, "query record must be excluded")
	}
	require.NotEmpty(t, results)
	assert.Equal(t, model.RecordID("b"), results[0].ID)

	_, err = idx.SearchByID(context.Background(), "missing", 0.5, 10, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShardedMatchesBruteForce(t *testing.T) {
	// The accelerated implementation must return similarity values within a
	// small epsilon of the brute-force oracle, with overlapping top-3 sets.
	const (
		numVectors = 200
		dim        = 16
		epsilon    = 0.01
	)

	rng := rand.New(rand.NewSource(42))

	brute := NewBruteForce()
	sharded, err := NewSharded(4)
	require.NoError(t, err)

	for i := 0; i < numVectors; i++ {
		id := model.RecordID(fmt.Sprintf("rec-%03d", i))
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		require.NoError(t, brute.Add(id, v))
		require.NoError(t, sharded.Add(id, v))
	}

	for q := 0; q < 10; q++ {
		query := make([]float32, dim)
		for j := range query {
			query[j] = rng.Float32()*2 - 1
		}

		want, err := brute.Search(context.Background(), query, 0.0, 10, nil)
		require.NoError(t, err)
		got, err := sharded.Search(context.Background(), query, 0.0, 10, nil)
		require.NoError(t, err)

		require.Equal(t, len(want), len(got))
		for i := range want {
			assert.Less(t, math.Abs(want[i].Similarity-got[i].Similarity), epsilon)
		}

		// Top-3 overlap must be non-empty.
		top3 := map[model.RecordID]bool{}
		for _, r := range want[:min(3, len(want))] {
			top3[r.ID] = true
		}
		overlap := 0
		for _, r := range got[:min(3, len(got))] {
			if top3[r.ID] {
				overlap++
			}
		}
		assert.NotZero(t, overlap, "top-3 neighbor sets must overlap")
	}
}

func TestShardedSearchByID(t *testing.T) {
	sharded, err := NewSharded(3)
	require.NoError(t, err)
	require.NoError(t, sharded.Add("a", []float32{1, 0}))
	require.NoError(t, sharded.Add("b", []float32{0.9, 0.1}))
	require.NoError(t, sharded.Add("c", []float32{0, 1}))

	results, err := sharded.SearchByID(context.Background(), "a", 0.5, 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, model.RecordID("b"), results[0].ID)
	for _, r := range results {
		assert.NotEqual(t, model.RecordID("a"), r.ID)
	}
}

func TestNewShardedValidation(t *testing.T) {
	_, err := NewSharded(0)
	assert.Error(t, err)
}

func TestShardedLenAndDimension(t *testing.T) {
	sharded, err := NewSharded(2)
	require.NoError(t, err)
	assert.Zero(t, sharded.Len())
	assert.Zero(t, sharded.Dimension())

	require.NoError(t, sharded.Add("a", []float32{1, 2, 3}))
	require.NoError(t, sharded.Add("b", []float32{4, 5, 6}))
	assert.Equal(t, 2, sharded.Len())
	assert.Equal(t, 3, sharded.Dimension())
}
