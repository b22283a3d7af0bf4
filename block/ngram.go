package block

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/strdist"
)

// Compile-time check.
var _ Strategy = (*NGram)(nil)

// NGramOptions configures the n-gram strategy.
type NGramOptions struct {
	// Field is the record field whose character n-grams are indexed.
	Field string

	// N is the gram length. Default 3.
	N int

	// MinShared is the minimum number of shared grams for two records to
	// become candidates. Default 2.
	MinShared int

	// MinSharedFraction, when > 0, additionally requires the shared count
	// to reach this fraction of the smaller record's gram set.
	MinSharedFraction float64

	// MaxPostingSize caps how many records a single gram may link.
	// More frequent grams are non-discriminating and skipped with a
	// warning. Default DefaultLimits.MaxBlockSize.
	MaxPostingSize int
}

// NGram builds an inverted index gram -> record set and proposes pairs that
// share at least a configured number (or fraction) of grams.
type NGram struct {
	opts NGramOptions
}

// NewNGram creates an n-gram strategy over the given field.
func NewNGram(field string, optFns ...func(o *NGramOptions)) (*NGram, error) {
	opts := NGramOptions{
		Field:          field,
		N:              3,
		MinShared:      2,
		MaxPostingSize: DefaultLimits.MaxBlockSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Field == "" {
		return nil, errors.New("ngram: field is required")
	}
	if opts.N <= 0 {
		return nil, fmt.Errorf("ngram: invalid gram length %d", opts.N)
	}
	if opts.MinShared < 1 {
		opts.MinShared = 1
	}
	return &NGram{opts: opts}, nil
}

func (s *NGram) Name() string { return "ngram" }

// Generate indexes grams into roaring posting bitmaps and counts shared
// grams per record pair. Records with a missing or too-short field value are
// excluded from the index.
func (s *NGram) Generate(ctx context.Context, records []model.Record, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Dense record indices keep the posting bitmaps small.
	gramCounts := make([]int, len(records))
	postings := make(map[string]*roaring.Bitmap)
	for i, rec := range records {
		raw, ok := rec.StringField(s.opts.Field)
		if !ok {
			continue
		}
		grams := strdist.NGrams(canonicalize(raw), s.opts.N)
		gramCounts[i] = len(grams)
		for gram := range grams {
			bm, ok := postings[gram]
			if !ok {
				bm = roaring.New()
				postings[gram] = bm
			}
			bm.Add(uint32(i))
		}
	}

	// Count shared grams per candidate pair. Hub grams are skipped so one
	// frequent substring cannot produce quadratic work.
	type pairIdx struct{ a, b uint32 }
	shared := make(map[pairIdx]int)
	for gram, bm := range postings {
		card := int(bm.GetCardinality())
		if card < 2 {
			continue
		}
		if s.opts.MaxPostingSize > 0 && card > s.opts.MaxPostingSize {
			sink.Warn(Warning{
				Strategy:    s.Name(),
				BlockingKey: gram,
				BlockSize:   card,
				Reason:      "gram posting exceeds max size, skipped",
			})
			continue
		}
		ids := bm.ToArray()
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				shared[pairIdx{a: ids[i], b: ids[j]}]++
			}
		}
	}

	for p, count := range shared {
		if count < s.opts.MinShared {
			continue
		}
		if s.opts.MinSharedFraction > 0 {
			smaller := gramCounts[p.a]
			if gramCounts[p.b] < smaller {
				smaller = gramCounts[p.b]
			}
			if smaller > 0 && float64(count) < s.opts.MinSharedFraction*float64(smaller) {
				continue
			}
		}
		key := fmt.Sprintf("shared=%d", count)
		if err := sink.Emit(model.NewCandidatePair(records[p.a].ID, records[p.b].ID, s.Name(), key)); err != nil {
			return err
		}
	}
	return nil
}
