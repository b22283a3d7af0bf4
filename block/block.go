package block

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/hupe1980/linkage/model"
)

// ErrNoStrategies is returned when an engine is built without strategies.
var ErrNoStrategies = errors.New("at least one blocking strategy is required")

// Sink receives candidate pairs and data-quality warnings from a strategy.
// The engine's sink canonicalizes, deduplicates, and counts.
type Sink interface {
	// Emit proposes a candidate pair. The sink drops duplicates silently.
	Emit(pair model.CandidatePair) error

	// Warn records a non-fatal data-quality event (e.g. a skipped
	// oversized block). The run continues.
	Warn(w Warning)
}

// Strategy maps records to blocking keys and emits within-group pairs.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, records []model.Record, sink Sink) error
}

// Warning records a block skipped or truncated by a strategy.
type Warning struct {
	Strategy    string
	BlockingKey string
	BlockSize   int
	Reason      string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: block %q (size %d): %s", w.Strategy, w.BlockingKey, w.BlockSize, w.Reason)
}

// Limits bounds block sizes for grouping strategies.
type Limits struct {
	// MinBlockSize is the smallest group that produces pairs.
	// Groups below it (singletons by default) are skipped silently.
	MinBlockSize int

	// MaxBlockSize is the largest group that produces pairs. Groups above
	// it are treated as non-discriminating hubs: skipped with a warning
	// instead of generating O(k²) pairs. Zero applies
	// DefaultLimits.MaxBlockSize; a negative value disables the cap.
	MaxBlockSize int
}

// DefaultLimits are the block-size bounds applied when none are configured.
var DefaultLimits = Limits{
	MinBlockSize: 2,
	MaxBlockSize: 1000,
}

func (l Limits) withDefaults() Limits {
	if l.MinBlockSize < 2 {
		l.MinBlockSize = DefaultLimits.MinBlockSize
	}
	if l.MaxBlockSize == 0 {
		l.MaxBlockSize = DefaultLimits.MaxBlockSize
	}
	return l
}

// Stats summarizes a candidate generation run.
type Stats struct {
	// PairsByStrategy counts unique pairs first emitted by each strategy.
	PairsByStrategy map[string]int

	// Duplicates counts pairs dropped because another strategy (or an
	// earlier block) already produced them.
	Duplicates int

	// Warnings lists skipped blocks and other recoverable events.
	Warnings []Warning
}

// Result is the materialized output of GenerateCandidates.
type Result struct {
	Pairs []model.CandidatePair
	Stats Stats
}

// Engine runs a set of blocking strategies over a record snapshot, merging
// their output through a canonical deduplicating sink.
type Engine struct {
	strategies []Strategy
}

// NewEngine creates an engine over the given strategies.
func NewEngine(strategies ...Strategy) (*Engine, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	return &Engine{strategies: strategies}, nil
}

// GenerateCandidates runs every strategy and returns the merged, deduplicated
// candidate set with per-strategy statistics.
func (e *Engine) GenerateCandidates(ctx context.Context, records []model.Record) (*Result, error) {
	sink := newDedupSink(nil)
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Generate(ctx, records, sink); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
	}
	return &Result{Pairs: sink.pairs, Stats: sink.stats()}, nil
}

// StreamCandidates yields merged, deduplicated pairs as strategies produce
// them. Iteration may be stopped early; the context is checked between
// emissions. Statistics for the completed portion are available from the
// returned stats function after iteration.
func (e *Engine) StreamCandidates(ctx context.Context, records []model.Record) (iter.Seq2[model.CandidatePair, error], func() Stats) {
	sink := newDedupSink(nil)

	seq := func(yield func(model.CandidatePair, error) bool) {
		stop := errors.New("stop")
		sink.forward = func(pair model.CandidatePair) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(pair, nil) {
				return stop
			}
			return nil
		}
		for _, s := range e.strategies {
			if err := s.Generate(ctx, records, sink); err != nil {
				if errors.Is(err, stop) {
					return
				}
				yield(model.CandidatePair{}, fmt.Errorf("strategy %s: %w", s.Name(), err))
				return
			}
		}
	}
	return seq, sink.stats
}

// dedupSink canonicalizes and deduplicates pairs across strategies.
type dedupSink struct {
	seen       map[string]struct{}
	pairs      []model.CandidatePair
	byStrategy map[string]int
	duplicates int
	warnings   []Warning

	// forward, when set, receives each unique pair instead of the pairs
	// slice (streaming mode).
	forward func(model.CandidatePair) error
}

func newDedupSink(forward func(model.CandidatePair) error) *dedupSink {
	return &dedupSink{
		seen:       make(map[string]struct{}),
		byStrategy: make(map[string]int),
		forward:    forward,
	}
}

func (s *dedupSink) Emit(pair model.CandidatePair) error {
	key := pair.Key()
	if _, dup := s.seen[key]; dup {
		s.duplicates++
		return nil
	}
	s.seen[key] = struct{}{}
	s.byStrategy[pair.Strategy]++
	if s.forward != nil {
		return s.forward(pair)
	}
	s.pairs = append(s.pairs, pair)
	return nil
}

func (s *dedupSink) Warn(w Warning) {
	s.warnings = append(s.warnings, w)
}

func (s *dedupSink) stats() Stats {
	return Stats{
		PairsByStrategy: s.byStrategy,
		Duplicates:      s.duplicates,
		Warnings:        s.warnings,
	}
}

// canonicalize trims and case-folds a key component.
func canonicalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// emitGroups applies block-size limits to keyed groups and emits all
// within-group pairs. Oversized groups are skipped with a warning.
func emitGroups(strategy string, groups map[string][]model.RecordID, limits Limits, sink Sink) error {
	limits = limits.withDefaults()
	for key, members := range groups {
		if len(members) < limits.MinBlockSize {
			continue
		}
		if limits.MaxBlockSize > 0 && len(members) > limits.MaxBlockSize {
			sink.Warn(Warning{
				Strategy:    strategy,
				BlockingKey: key,
				BlockSize:   len(members),
				Reason:      "block exceeds max_block_size, skipped",
			})
			continue
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if err := sink.Emit(model.NewCandidatePair(members[i], members[j], strategy, key)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
