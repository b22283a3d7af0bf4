package linkage

import (
	"sync/atomic"
	"time"
)

// StatsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type StatsCollector interface {
	// RecordBlocking is called after the blocking stage.
	// pairs is the number of distinct candidate pairs generated,
	// warnings the number of block-size warnings raised.
	RecordBlocking(pairs, warnings int, duration time.Duration)

	// RecordScoring is called after the scoring stage.
	// scored counts pairs classified, matches those at or above the upper
	// threshold.
	RecordScoring(scored, matches int, duration time.Duration)

	// RecordClustering is called after the clustering stage.
	RecordClustering(edges, clusters int, duration time.Duration)

	// RecordRun is called once per pipeline run.
	// err is nil if the run completed.
	RecordRun(duration time.Duration, err error)
}

// NoopStatsCollector is a no-op implementation of StatsCollector.
// Use this when metrics collection is not needed.
type NoopStatsCollector struct{}

func (NoopStatsCollector) RecordBlocking(int, int, time.Duration)   {}
func (NoopStatsCollector) RecordScoring(int, int, time.Duration)    {}
func (NoopStatsCollector) RecordClustering(int, int, time.Duration) {}
func (NoopStatsCollector) RecordRun(time.Duration, error)           {}

// BasicStatsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicStatsCollector struct {
	BlockingRuns    atomic.Int64
	PairsGenerated  atomic.Int64
	BlockWarnings   atomic.Int64
	PairsScored     atomic.Int64
	Matches         atomic.Int64
	ClusteringRuns  atomic.Int64
	EdgesClustered  atomic.Int64
	ClustersFormed  atomic.Int64
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	RunTotalNanos   atomic.Int64
}

// RecordBlocking implements StatsCollector.
func (b *BasicStatsCollector) RecordBlocking(pairs, warnings int, duration time.Duration) {
	b.BlockingRuns.Add(1)
	b.PairsGenerated.Add(int64(pairs))
	b.BlockWarnings.Add(int64(warnings))
}

// RecordScoring implements StatsCollector.
func (b *BasicStatsCollector) RecordScoring(scored, matches int, duration time.Duration) {
	b.PairsScored.Add(int64(scored))
	b.Matches.Add(int64(matches))
}

// RecordClustering implements StatsCollector.
func (b *BasicStatsCollector) RecordClustering(edges, clusters int, duration time.Duration) {
	b.ClusteringRuns.Add(1)
	b.EdgesClustered.Add(int64(edges))
	b.ClustersFormed.Add(int64(clusters))
}

// RecordRun implements StatsCollector.
func (b *BasicStatsCollector) RecordRun(duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// AvgRunNanos returns the mean run duration in nanoseconds.
func (b *BasicStatsCollector) AvgRunNanos() int64 {
	count := b.RunCount.Load()
	if count == 0 {
		return 0
	}
	return b.RunTotalNanos.Load() / count
}
