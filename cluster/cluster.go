package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/linkage/model"
)

// ConfigError reports an invalid clustering configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid clustering config: %s", e.Reason)
}

// Options configures the clustering engine.
type Options struct {
	// MinSimilarity is the normalized similarity a scored pair must reach
	// to contribute an edge. Pairs without field scores fall back to their
	// match decision instead. Default 0.75.
	MinSimilarity float64

	// MinClusterSize discards smaller components. Default 2, which drops
	// singletons.
	MinClusterSize int

	// MaxClusterSize flags larger components as oversized without
	// splitting them. Zero disables the check.
	MaxClusterSize int
}

// DefaultOptions are the clustering defaults.
var DefaultOptions = Options{
	MinSimilarity:  0.75,
	MinClusterSize: 2,
}

// Stats summarizes a clustering run.
type Stats struct {
	// EdgesConsidered counts scored pairs inspected.
	EdgesConsidered int

	// EdgesAdmitted counts distinct edges that passed the similarity gate.
	EdgesAdmitted int

	// DuplicateEdges counts admitted pairs collapsed onto an existing edge
	// key, including reversed orientations of the same pair.
	DuplicateEdges int

	// Discarded counts components below the minimum cluster size.
	Discarded int

	// Oversized counts components flagged above the maximum cluster size.
	Oversized int
}

// Engine groups matched records into connected components of the similarity
// graph. It is stateless across runs: clustering the same edge set twice
// yields identical clusters with identical IDs.
type Engine struct {
	opts Options
}

// NewEngine creates a clustering engine.
func NewEngine(optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("min similarity must be in [0,1], got %v", opts.MinSimilarity)}
	}
	if opts.MinClusterSize < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("min cluster size must be at least 1, got %d", opts.MinClusterSize)}
	}
	if opts.MaxClusterSize != 0 && opts.MaxClusterSize < opts.MinClusterSize {
		return nil, &ConfigError{Reason: fmt.Sprintf("max cluster size %d below min cluster size %d", opts.MaxClusterSize, opts.MinClusterSize)}
	}
	return &Engine{opts: opts}, nil
}

// Cluster converts scored pairs into similarity edges and groups them into
// connected components. Cancellation is all-or-nothing: no partial cluster
// set is ever returned.
func (e *Engine) Cluster(ctx context.Context, pairs []model.ScoredPair) ([]model.Cluster, Stats, error) {
	clusters, stats, err := e.ClusterEdges(ctx, e.Edges(pairs))
	if err != nil {
		return nil, Stats{}, err
	}
	stats.EdgesConsidered = len(pairs)
	return clusters, stats, nil
}

// Edges converts scored pairs into canonically oriented similarity edges,
// applying the similarity gate. The result may contain duplicate keys;
// ClusterEdges and idempotent sinks collapse them.
func (e *Engine) Edges(pairs []model.ScoredPair) []model.Edge {
	edges := make([]model.Edge, 0, len(pairs))
	for _, p := range pairs {
		sim, ok := e.admit(p)
		if !ok {
			continue
		}
		edges = append(edges, model.NewEdge(p.IDA, p.IDB, sim))
	}
	return edges
}

// ClusterEdges groups pre-built similarity edges into connected components.
// Edges are deduplicated by key first, so replayed or reversed duplicates of
// the same pair count once.
func (e *Engine) ClusterEdges(ctx context.Context, edges []model.Edge) ([]model.Cluster, Stats, error) {
	var stats Stats

	seen := make(map[string]struct{}, len(edges))
	unique := make([]model.Edge, 0, len(edges))
	for _, edge := range edges {
		key := edge.Key()
		if _, dup := seen[key]; dup {
			stats.DuplicateEdges++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, edge)
	}
	stats.EdgesAdmitted = len(unique)

	index := make(map[model.RecordID]int)
	var ids []model.RecordID
	idx := func(id model.RecordID) int {
		i, ok := index[id]
		if !ok {
			i = len(ids)
			index[id] = i
			ids = append(ids, id)
		}
		return i
	}

	uf := newUnionFind(0)
	for _, edge := range unique {
		a, b := idx(edge.IDA), idx(edge.IDB)
		uf.grow(len(ids))
		uf.union(a, b)
	}

	// The barrier before extraction: a cancelled run yields no clusters at
	// all rather than a partial set.
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	type component struct {
		members []model.RecordID
		edges   int
		simSum  float64
	}
	components := make(map[int]*component)
	for i, id := range ids {
		root := uf.find(i)
		c, ok := components[root]
		if !ok {
			c = &component{}
			components[root] = c
		}
		c.members = append(c.members, id)
	}
	for _, edge := range unique {
		c := components[uf.find(index[edge.IDA])]
		c.edges++
		c.simSum += edge.Similarity
	}

	clusters := make([]model.Cluster, 0, len(components))
	for _, c := range components {
		if len(c.members) < e.opts.MinClusterSize {
			stats.Discarded++
			continue
		}

		sort.Slice(c.members, func(i, j int) bool { return c.members[i].Less(c.members[j]) })

		n := len(c.members)
		cluster := model.Cluster{
			ID:      model.ClusterID(c.members),
			Members: c.members,
			Size:    n,
		}
		if c.edges > 0 {
			cluster.AvgSimilarity = c.simSum / float64(c.edges)
		}
		if possible := n * (n - 1) / 2; possible > 0 {
			cluster.Density = float64(c.edges) / float64(possible)
		}
		if e.opts.MaxClusterSize > 0 && n > e.opts.MaxClusterSize {
			cluster.Oversized = true
			stats.Oversized++
		}
		clusters = append(clusters, cluster)
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters, stats, nil
}

// admit decides whether a scored pair contributes a similarity edge and with
// what similarity. Pairs carrying field scores are gated on their normalized
// mean similarity; pairs without any (e.g. all fields skipped) fall back to
// the match decision and contribute similarity 1.
func (e *Engine) admit(p model.ScoredPair) (float64, bool) {
	if len(p.FieldScores) > 0 {
		sim := p.NormalizedScore()
		return sim, sim >= e.opts.MinSimilarity
	}
	if p.Decision == model.DecisionMatch {
		return 1, true
	}
	return 0, false
}
