// Package cluster groups matched record pairs into entity clusters by
// computing connected components of the similarity graph with a union-find
// forest. Clustering is deterministic: the same edge set always produces the
// same clusters with the same IDs, regardless of edge order or orientation.
package cluster
