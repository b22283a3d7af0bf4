// Package strdist provides string similarity metrics for record comparison:
// Levenshtein distance and ratio, Jaro-Winkler, Jaccard token similarity,
// character n-gram similarity, and the Soundex phonetic code.
//
// All similarity functions return values in [0,1], where 1 means identical.
package strdist
