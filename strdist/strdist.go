package strdist

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// LevenshteinRatio returns a normalized similarity in [0,1] derived from the
// edit distance: 1 - distance/max(len). Two empty strings are identical.
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

// JaroWinkler returns the Jaro-Winkler similarity in [0,1].
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	return matchr.JaroWinkler(a, b, false)
}

// Jaccard returns the Jaccard similarity of the whitespace token sets of a
// and b, case-insensitive. Two empty token sets are identical.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	return jaccardSets(setA, setB)
}

// NGrams returns the set of character n-grams of s. Strings shorter than n
// yield an empty set.
func NGrams(s string, n int) map[string]struct{} {
	grams := make(map[string]struct{})
	if n <= 0 {
		return grams
	}
	runes := []rune(s)
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = struct{}{}
	}
	return grams
}

// NGramSimilarity returns the Jaccard similarity of the character n-gram sets
// of a and b. Strings shorter than n cannot produce grams; for those the
// comparison degrades to exact equality.
func NGramSimilarity(a, b string, n int) float64 {
	if n <= 0 {
		n = 3
	}
	setA := NGrams(a, n)
	setB := NGrams(b, n)
	if len(setA) == 0 || len(setB) == 0 {
		if a == b {
			return 1
		}
		return 0
	}
	return jaccardSets(setA, setB)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccardSets(a, b map[string]struct{}) float64 {
	// Iterate over the smaller set.
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}

// Metric identifies a string similarity metric by a stable name.
type Metric string

const (
	MetricJaroWinkler Metric = "jaro_winkler"
	MetricLevenshtein Metric = "levenshtein"
	MetricJaccard     Metric = "jaccard"
	MetricNGram       Metric = "ngram"
	MetricSoundex     Metric = "soundex"
	MetricExact       Metric = "exact"
)

// Func computes a similarity in [0,1] for two strings.
type Func func(a, b string) float64

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricJaroWinkler:
		return JaroWinkler, nil
	case MetricLevenshtein:
		return LevenshteinRatio, nil
	case MetricJaccard:
		return Jaccard, nil
	case MetricNGram:
		return func(a, b string) float64 { return NGramSimilarity(a, b, 3) }, nil
	case MetricSoundex:
		return func(a, b string) float64 {
			if Soundex(a) == Soundex(b) {
				return 1
			}
			return 0
		}, nil
	case MetricExact:
		return func(a, b string) float64 {
			if a == b {
				return 1
			}
			return 0
		}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %q", m)
	}
}
