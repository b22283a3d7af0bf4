package model

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// RecordID is the stable, collection-unique identifier of a record.
// Pairs of IDs are always oriented under its lexicographic total order.
type RecordID string

// Less reports whether id sorts before other.
func (id RecordID) Less(other RecordID) bool { return id < other }

// Record is an immutable snapshot of a stored document.
// The library only ever reads it; ownership stays with the external store.
type Record struct {
	ID     RecordID
	Fields map[string]any
}

// StringField returns the named field as a string.
// ok is false when the field is absent, nil, or not a string.
func (r Record) StringField(name string) (string, bool) {
	v, exists := r.Fields[name]
	if !exists || v == nil {
		return "", false
	}
	s, isString := v.(string)
	return s, isString
}

// Float64Field returns the named field as a float64, converting from the
// common numeric types. ok is false for absent, nil, or non-numeric values.
func (r Record) Float64Field(name string) (float64, bool) {
	v, exists := r.Fields[name]
	if !exists || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CandidatePair is an unordered pair of record IDs proposed by a blocking
// strategy, stored in canonical orientation (IDA < IDB).
type CandidatePair struct {
	IDA         RecordID
	IDB         RecordID
	Strategy    string
	BlockingKey string
}

// NewCandidatePair builds a canonically oriented pair. The order in which the
// two IDs are passed does not matter.
func NewCandidatePair(a, b RecordID, strategy, blockingKey string) CandidatePair {
	if b.Less(a) {
		a, b = b, a
	}
	return CandidatePair{IDA: a, IDB: b, Strategy: strategy, BlockingKey: blockingKey}
}

// Key returns the canonical unordered-pair identity. Two pairs over the same
// records share a key regardless of discovery order or producing strategy.
func (p CandidatePair) Key() string {
	return pairKey(p.IDA, p.IDB)
}

func pairKey(a, b RecordID) string {
	if b.Less(a) {
		a, b = b, a
	}
	return string(a) + "\x00" + string(b)
}

// Decision classifies a scored pair.
type Decision int

const (
	DecisionNonMatch Decision = iota
	DecisionPossibleMatch
	DecisionMatch
)

func (d Decision) String() string {
	switch d {
	case DecisionMatch:
		return "match"
	case DecisionPossibleMatch:
		return "possible_match"
	case DecisionNonMatch:
		return "non_match"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// ScoredPair is a candidate pair with per-field similarities, the summed
// weighted log-likelihood score, and the resulting decision.
type ScoredPair struct {
	CandidatePair

	// FieldScores maps field name to raw similarity in [0,1].
	// Fields skipped by null policy or recovered comparison failures are absent.
	FieldScores map[string]float64

	// TotalScore is the summed weighted log2 likelihood ratio.
	TotalScore float64

	Decision Decision
}

// NormalizedScore returns the mean of the per-field similarities, a value in
// [0,1] suitable for threshold comparison in clustering. Pairs with no scored
// fields normalize to 0.
func (p ScoredPair) NormalizedScore() float64 {
	if len(p.FieldScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.FieldScores {
		sum += s
	}
	return sum / float64(len(p.FieldScores))
}

// Edge is a scored pair that cleared the clustering similarity threshold.
// Identity is a deterministic hash of the canonical pair, so re-runs and
// bidirectional duplicates collapse to the same key.
type Edge struct {
	IDA        RecordID `json:"id_a"`
	IDB        RecordID `json:"id_b"`
	Similarity float64  `json:"similarity"`
}

// NewEdge builds a canonically oriented edge.
func NewEdge(a, b RecordID, similarity float64) Edge {
	if b.Less(a) {
		a, b = b, a
	}
	return Edge{IDA: a, IDB: b, Similarity: similarity}
}

// Key returns the deterministic edge identity: the hex-encoded FNV-1a 64-bit
// hash of the canonical pair. Independent of discovery order and of which
// side of the pair was observed first.
func (e Edge) Key() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pairKey(e.IDA, e.IDB)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Cluster is a maximal connected component of the similarity graph.
type Cluster struct {
	// ID is a deterministic hash of the sorted member list, stable across
	// re-runs over the same edge set.
	ID string

	// Members is the sorted set of record IDs in the component.
	Members []RecordID

	// AvgSimilarity is the mean similarity over edges inside the component.
	AvgSimilarity float64

	// Density is edges present / edges possible (|E| / C(n,2)).
	Density float64

	Size int

	// Oversized flags components exceeding the configured maximum size.
	// Oversized clusters are reported intact, never split.
	Oversized bool
}

// ClusterID computes the deterministic cluster identity for a member set.
// The input is not modified; members are hashed in sorted order.
func ClusterID(members []RecordID) string {
	sorted := make([]RecordID, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	h := fnv.New64a()
	for _, m := range sorted {
		_, _ = h.Write([]byte(m))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
