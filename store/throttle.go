package store

import (
	"context"
	"iter"

	"golang.org/x/time/rate"

	"github.com/hupe1980/linkage/model"
)

// Compile time check to ensure ThrottledSource satisfies the RecordSource interface.
var _ RecordSource = (*ThrottledSource)(nil)

// ThrottledSource wraps a record source with a rate limit, pacing reads so a
// large linkage run does not saturate a shared backing store.
type ThrottledSource struct {
	inner   RecordSource
	limiter *rate.Limiter
}

// NewThrottledSource wraps inner, allowing recordsPerSecond reads with the
// given burst.
func NewThrottledSource(inner RecordSource, recordsPerSecond float64, burst int) *ThrottledSource {
	return &ThrottledSource{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(recordsPerSecond), burst),
	}
}

// FetchRecords streams the inner source's records, blocking on the rate
// limiter before each record. A cancelled context ends the stream with the
// context error.
func (s *ThrottledSource) FetchRecords(ctx context.Context, collection string, filter func(model.Record) bool) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for rec, err := range s.inner.FetchRecords(ctx, collection, filter) {
			if err != nil {
				yield(model.Record{}, err)
				return
			}
			if err := s.limiter.Wait(ctx); err != nil {
				yield(model.Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
