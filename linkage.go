package linkage

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/linkage/block"
	"github.com/hupe1980/linkage/cluster"
	"github.com/hupe1980/linkage/model"
	"github.com/hupe1980/linkage/score"
	"github.com/hupe1980/linkage/store"
)

// Options configures pipeline execution.
type Options struct {
	// BatchSize is the number of candidate pairs scored per worker batch.
	// Default 256.
	BatchSize int

	// Parallelism bounds the number of concurrent scoring workers.
	// Default runtime.NumCPU().
	Parallelism int

	// EdgeSink, when set, receives the admitted similarity edges before
	// clustering. Persistence failures fail the run.
	EdgeSink store.EdgeSink

	// EdgeCollection names the sink collection. Default "edges".
	EdgeCollection string

	// Logger receives structured stage logs. Default discard.
	Logger *Logger

	// StatsCollector receives operational metrics. Default noop.
	StatsCollector StatsCollector
}

// DefaultOptions are the pipeline defaults.
var DefaultOptions = Options{
	BatchSize:      256,
	EdgeCollection: "edges",
}

// RunStats summarizes a completed pipeline run.
type RunStats struct {
	Records         int
	CandidatePairs  int
	PairsScored     int
	Matches         int
	PossibleMatches int
	NonMatches      int
	Blocking        block.Stats
	Clustering      cluster.Stats
	Duration        time.Duration
}

// RunResult is the output of a pipeline run.
type RunResult struct {
	// RunID uniquely identifies the run, for log correlation.
	RunID string

	// Clusters are the resolved entity clusters, ordered by ID.
	Clusters []model.Cluster

	// Edges are the admitted similarity edges the clusters were built
	// from, deduplicated by key.
	Edges []model.Edge

	Stats RunStats
}

// Pipeline wires blocking, scoring and clustering into a single run.
// It is immutable after construction and safe for concurrent runs.
type Pipeline struct {
	blocker   *block.Engine
	scorer    *score.Scorer
	clusterer *cluster.Engine
	opts      Options
	logger    *Logger
	stats     StatsCollector
}

// New creates a pipeline from the three stage engines.
func New(blocker *block.Engine, scorer *score.Scorer, clusterer *cluster.Engine, optFns ...func(o *Options)) (*Pipeline, error) {
	if blocker == nil {
		return nil, ErrNilBlocker
	}
	if scorer == nil {
		return nil, ErrNilScorer
	}
	if clusterer == nil {
		return nil, ErrNilClusterer
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions.BatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.EdgeCollection == "" {
		opts.EdgeCollection = DefaultOptions.EdgeCollection
	}

	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	var stats StatsCollector = NoopStatsCollector{}
	if opts.StatsCollector != nil {
		stats = opts.StatsCollector
	}

	return &Pipeline{
		blocker:   blocker,
		scorer:    scorer,
		clusterer: clusterer,
		opts:      opts,
		logger:    logger,
		stats:     stats,
	}, nil
}

// Run resolves the record snapshot into entity clusters.
//
// Scoring runs in parallel batches; clustering only starts once every batch
// has completed. Cancellation takes effect between batches and never yields
// a partial cluster set.
func (p *Pipeline) Run(ctx context.Context, records []model.Record) (*RunResult, error) {
	start := time.Now()

	result, err := p.run(ctx, records)

	duration := time.Since(start)
	p.stats.RecordRun(duration, err)
	if err != nil {
		p.logger.LogRun(ctx, len(records), 0, duration, err)
		return nil, err
	}

	result.Stats.Duration = duration
	p.logger.WithRunID(result.RunID).LogRun(ctx, len(records), len(result.Clusters), duration, nil)
	return result, nil
}

// RunSource drains a record source and resolves the fetched snapshot. Fetch
// failures, including cancellation mid-stream, fail the run before any
// blocking work starts.
func (p *Pipeline) RunSource(ctx context.Context, src store.RecordSource, collection string, filter func(model.Record) bool) (*RunResult, error) {
	var records []model.Record
	for rec, err := range src.FetchRecords(ctx, collection, filter) {
		if err != nil {
			return nil, &StageError{Stage: "fetch", cause: err}
		}
		records = append(records, rec)
	}
	return p.Run(ctx, records)
}

func (p *Pipeline) run(ctx context.Context, records []model.Record) (*RunResult, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	byID := make(map[model.RecordID]model.Record, len(records))
	for _, rec := range records {
		if _, dup := byID[rec.ID]; dup {
			return nil, &ErrDuplicateRecordID{ID: string(rec.ID)}
		}
		byID[rec.ID] = rec
	}

	runID := uuid.NewString()
	logger := p.logger.WithRunID(runID)

	// Blocking.
	blockStart := time.Now()
	blocked, err := p.blocker.GenerateCandidates(ctx, records)
	if err != nil {
		logger.LogBlocking(ctx, len(records), 0, 0, err)
		return nil, &StageError{Stage: "blocking", cause: err}
	}
	logger.LogBlocking(ctx, len(records), len(blocked.Pairs), len(blocked.Stats.Warnings), nil)
	for name, count := range blocked.Stats.PairsByStrategy {
		logger.WithStrategy(name).DebugContext(ctx, "strategy emitted pairs", "pairs", count)
	}
	p.stats.RecordBlocking(len(blocked.Pairs), len(blocked.Stats.Warnings), time.Since(blockStart))

	// Scoring, in parallel batches. Each batch writes its own slice region,
	// so no locking is needed; g.Wait is the barrier before clustering.
	scoreStart := time.Now()
	scored := make([]model.ScoredPair, len(blocked.Pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)

	for lo := 0; lo < len(blocked.Pairs); lo += p.opts.BatchSize {
		if err := gctx.Err(); err != nil {
			break
		}

		hi := min(lo+p.opts.BatchSize, len(blocked.Pairs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				pair := blocked.Pairs[i]
				scored[i] = p.scorer.Score(pair, byID[pair.IDA], byID[pair.IDB])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.LogScoring(ctx, 0, 0, 0, err)
		return nil, &StageError{Stage: "scoring", cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "scoring", cause: err}
	}

	var matches, possible, nonMatches int
	for _, sp := range scored {
		switch sp.Decision {
		case model.DecisionMatch:
			matches++
		case model.DecisionPossibleMatch:
			possible++
		default:
			nonMatches++
		}
	}
	logger.LogScoring(ctx, len(scored), matches, possible, nil)
	p.stats.RecordScoring(len(scored), matches, time.Since(scoreStart))

	// Edges, optionally persisted before clustering.
	edges := p.clusterer.Edges(scored)
	if p.opts.EdgeSink != nil {
		if err := p.opts.EdgeSink.Upsert(ctx, p.opts.EdgeCollection, edges); err != nil {
			return nil, &StageError{Stage: "persist", cause: err}
		}
	}

	// Clustering.
	clusterStart := time.Now()
	clusters, clusterStats, err := p.clusterer.ClusterEdges(ctx, edges)
	if err != nil {
		logger.LogClustering(ctx, len(edges), 0, 0, err)
		return nil, &StageError{Stage: "clustering", cause: err}
	}
	clusterStats.EdgesConsidered = len(scored)
	logger.LogClustering(ctx, clusterStats.EdgesAdmitted, len(clusters), clusterStats.Oversized, nil)
	p.stats.RecordClustering(clusterStats.EdgesAdmitted, len(clusters), time.Since(clusterStart))

	return &RunResult{
		RunID:    runID,
		Clusters: clusters,
		Edges:    dedupEdges(edges),
		Stats: RunStats{
			Records:         len(records),
			CandidatePairs:  len(blocked.Pairs),
			PairsScored:     len(scored),
			Matches:         matches,
			PossibleMatches: possible,
			NonMatches:      nonMatches,
			Blocking:        blocked.Stats,
			Clustering:      clusterStats,
		},
	}, nil
}

func dedupEdges(edges []model.Edge) []model.Edge {
	seen := make(map[string]struct{}, len(edges))
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
