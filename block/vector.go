package block

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/linkage/ann"
	"github.com/hupe1980/linkage/distance"
	"github.com/hupe1980/linkage/model"
)

// Compile-time check.
var _ Strategy = (*Vector)(nil)

// Embedder maps a record to a fixed-dimension vector. Returning ok=false
// excludes the record from vector blocking (e.g. no embeddable content).
type Embedder func(rec model.Record) (vector []float32, ok bool, err error)

// VectorOptions configures the vector/ANN strategy.
type VectorOptions struct {
	// Embedder produces the record vectors. Required.
	Embedder Embedder

	// Index is the nearest-neighbor index. Default ann.NewBruteForce().
	Index ann.Index

	// Threshold is the minimum cosine similarity. Default 0.8.
	Threshold float64

	// TopK is the number of neighbors retrieved per record. Default 10.
	TopK int

	// BlockingField, when set, constrains neighbors to records sharing
	// this field's canonicalized value.
	BlockingField string
}

// Vector embeds each record and proposes its nearest neighbors above a
// cosine similarity threshold as candidates.
type Vector struct {
	opts VectorOptions
}

// NewVector creates a vector strategy with the given embedder.
func NewVector(embedder Embedder, optFns ...func(o *VectorOptions)) (*Vector, error) {
	opts := VectorOptions{
		Embedder:  embedder,
		Threshold: 0.8,
		TopK:      10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Embedder == nil {
		return nil, errors.New("vector: embedder is required")
	}
	if opts.Threshold < -1 || opts.Threshold > 1 {
		return nil, fmt.Errorf("vector: threshold must be in [-1,1], got %v", opts.Threshold)
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("vector: topK must be >= 1, got %d", opts.TopK)
	}
	if opts.Index == nil {
		opts.Index = ann.NewBruteForce()
	}
	return &Vector{opts: opts}, nil
}

func (s *Vector) Name() string { return "vector" }

// Generate embeds all records into the index, then queries each record's
// neighbors, optionally constrained to the same blocking-field value.
func (s *Vector) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	blockValues := make(map[model.RecordID]string, len(records))
	embedded := make([]model.RecordID, 0, len(records))
	for _, rec := range records {
		vec, ok, err := s.opts.Embedder(rec)
		if err != nil {
			return fmt.Errorf("embed record %s: %w", rec.ID, err)
		}
		if !ok {
			continue
		}
		// Unit-length vectors keep cosine similarity scale-free; a
		// zero-norm embedding carries no direction and is excluded.
		normalized, ok := distance.NormalizeL2Copy(vec)
		if !ok {
			continue
		}
		if err := s.opts.Index.Add(rec.ID, normalized); err != nil {
			return fmt.Errorf("index record %s: %w", rec.ID, err)
		}
		embedded = append(embedded, rec.ID)

		if s.opts.BlockingField != "" {
			if raw, ok := blockValue(rec, s.opts.BlockingField); ok {
				blockValues[rec.ID] = raw
			}
		}
	}

	for _, id := range embedded {
		if err := ctx.Err(); err != nil {
			return err
		}

		var filter ann.Filter
		if s.opts.BlockingField != "" {
			own, hasOwn := blockValues[id]
			filter = func(other model.RecordID) bool {
				v, ok := blockValues[other]
				return hasOwn && ok && v == own
			}
		}

		neighbors, err := s.opts.Index.SearchByID(ctx, id, s.opts.Threshold, s.opts.TopK, filter)
		if err != nil {
			return fmt.Errorf("search record %s: %w", id, err)
		}
		for _, n := range neighbors {
			key := fmt.Sprintf("cos~%.2f", n.Similarity)
			if err := sink.Emit(model.NewCandidatePair(id, n.ID, s.Name(), key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func blockValue(rec model.Record, field string) (string, bool) {
	raw, ok := rec.StringField(field)
	if !ok {
		return "", false
	}
	v := canonicalize(raw)
	return v, v != ""
}
