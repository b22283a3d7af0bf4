package ann

import (
	"context"
	"fmt"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Index = (*Sharded)(nil)

// Sharded is an exact index partitioned across independent shards searched
// in parallel. Ownership is hash-based: a record always lands on the same
// shard, so repeated builds over the same data are deterministic.
//
// Because each shard performs the same exact scan as BruteForce and the
// merge keeps the global top results, Sharded returns identical similarity
// values to the brute-force oracle.
type Sharded struct {
	shards []*BruteForce
}

// NewSharded creates a sharded exact index with numShards partitions.
func NewSharded(numShards int) (*Sharded, error) {
	if numShards < 1 {
		return nil, fmt.Errorf("numShards must be >= 1, got %d", numShards)
	}
	shards := make([]*BruteForce, numShards)
	for i := range shards {
		shards[i] = NewBruteForce()
	}
	return &Sharded{shards: shards}, nil
}

// NumShards returns the number of partitions.
func (s *Sharded) NumShards() int { return len(s.shards) }

func (s *Sharded) shardFor(id model.RecordID) *BruteForce {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Add inserts or replaces the vector stored for id on its owning shard.
func (s *Sharded) Add(id model.RecordID, vector []float32) error {
	return s.shardFor(id).Add(id, vector)
}

// Len returns the number of stored vectors across all shards.
func (s *Sharded) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Dimension returns the fixed vector dimensionality, or 0 while empty.
func (s *Sharded) Dimension() int {
	for _, shard := range s.shards {
		if d := shard.Dimension(); d != 0 {
			return d
		}
	}
	return 0
}

// Search fans the query out to every shard in parallel and merges the
// per-shard results into the global top limit.
func (s *Sharded) Search(ctx context.Context, query []float32, threshold float64, limit int, filter Filter) ([]Result, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	// Each goroutine writes a distinct slot; no locking needed.
	perShard := make([][]Result, len(s.shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range s.shards {
		g.Go(func() error {
			results, err := shard.Search(gctx, query, threshold, limit, filter)
			if err != nil {
				return err
			}
			perShard[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Result
	for _, results := range perShard {
		merged = append(merged, results...)
	}
	SortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// SearchByID resolves the stored vector of id from its owning shard, then
// searches all shards with the record itself excluded.
func (s *Sharded) SearchByID(ctx context.Context, id model.RecordID, threshold float64, limit int, filter Filter) ([]Result, error) {
	query, err := s.shardFor(id).Vector(id)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, threshold, limit, excludeSelf(id, filter))
}
