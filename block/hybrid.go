package block

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/linkage/lexical"
	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/strdist"
)

// Compile-time check.
var _ Strategy = (*Hybrid)(nil)

// HybridOptions configures the hybrid lexical + edit-distance strategy.
type HybridOptions struct {
	// Field is the record field indexed and compared.
	Field string

	// TopK is the shortlist size retrieved per record. Default 10.
	TopK int

	// MinSimilarity is the edit-distance gate the shortlist must clear.
	// Default 0.8.
	MinSimilarity float64

	// Gate is the precise metric applied to the shortlist.
	// Default Jaro-Winkler.
	Gate strdist.Metric
}

// Hybrid runs a two-stage retrieval: a fast BM25 ranking produces a bounded
// shortlist per record, and a precise string-similarity gate filters the
// shortlist to final candidates. Cost is O(n·k) instead of O(n²).
type Hybrid struct {
	opts HybridOptions
	gate strdist.Func
}

// NewHybrid creates a hybrid strategy over the given field.
func NewHybrid(field string, optFns ...func(o *HybridOptions)) (*Hybrid, error) {
	opts := HybridOptions{
		Field:         field,
		TopK:          10,
		MinSimilarity: 0.8,
		Gate:          strdist.MetricJaroWinkler,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Field == "" {
		return nil, errors.New("hybrid: field is required")
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("hybrid: topK must be >= 1, got %d", opts.TopK)
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return nil, fmt.Errorf("hybrid: minSimilarity must be in [0,1], got %v", opts.MinSimilarity)
	}
	gate, err := strdist.Provider(opts.Gate)
	if err != nil {
		return nil, fmt.Errorf("hybrid: %w", err)
	}
	return &Hybrid{opts: opts, gate: gate}, nil
}

func (s *Hybrid) Name() string { return "hybrid" }

// Generate indexes every record's field value, retrieves a per-record BM25
// shortlist, and emits shortlist entries passing the similarity gate.
func (s *Hybrid) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx := lexical.New()
	values := make(map[model.RecordID]string, len(records))
	for _, rec := range records {
		raw, ok := rec.StringField(s.opts.Field)
		if !ok {
			continue
		}
		value := canonicalize(raw)
		if value == "" {
			continue
		}
		values[rec.ID] = value
		idx.Add(rec.ID, value)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, ok := values[rec.ID]
		if !ok {
			continue
		}
		// +1 because the record itself ranks first for its own value.
		for _, hit := range idx.TopK(value, s.opts.TopK+1) {
			if hit.ID == rec.ID {
				continue
			}
			sim := s.gate(value, values[hit.ID])
			if sim < s.opts.MinSimilarity {
				continue
			}
			key := fmt.Sprintf("%s~%.2f", s.opts.Gate, sim)
			if err := sink.Emit(model.NewCandidatePair(rec.ID, hit.ID, s.Name(), key)); err != nil {
				return err
			}
		}
	}
	return nil
}
