// Package model defines core types used throughout Linkage.
//
// # Identity Types
//
//   - RecordID: Stable, collection-unique record identifier (string);
//     pairs are always oriented under its lexicographic total order
//   - Edge keys: deterministic hashes of a canonical pair, used for
//     idempotent upserts
//
// # Data Types
//
//   - Record: Immutable key/value snapshot of a stored document
//   - CandidatePair: Two record IDs proposed by a blocking strategy
//   - ScoredPair: Candidate pair with per-field similarities, a summed
//     log-likelihood score, and a match decision
//   - Edge: A scored pair that cleared the clustering threshold
//   - Cluster: A maximal connected component with quality metrics
package model
