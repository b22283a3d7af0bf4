// Package lexical provides an in-memory BM25 index used by the hybrid
// blocking strategy: a cheap term-frequency ranking retrieves a shortlist of
// lexically similar records, which a precise edit-distance gate then filters.
package lexical
