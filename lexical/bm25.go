package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/linkage/model"
)

const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	id    model.RecordID
	count int
}

// Hit is a ranked retrieval result.
type Hit struct {
	ID    model.RecordID
	Score float64
}

// MemoryIndex is a simple in-memory BM25 index.
type MemoryIndex struct {
	mu          sync.RWMutex
	inverted    map[string][]posting
	docLengths  map[model.RecordID]int
	totalLength int64
	docCount    int
}

// New creates a new MemoryIndex.
func New() *MemoryIndex {
	return &MemoryIndex{
		inverted:   make(map[string][]posting),
		docLengths: make(map[model.RecordID]int),
	}
}

func (idx *MemoryIndex) tokenize(text string) []string {
	// Very simple tokenizer: lowercase and split by whitespace
	return strings.Fields(strings.ToLower(text))
}

// Add indexes the text under the given record ID, replacing any prior entry.
func (idx *MemoryIndex) Add(id model.RecordID, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docLengths[id]; ok {
		idx.deleteLocked(id)
	}

	tokens := idx.tokenize(text)
	length := len(tokens)

	idx.docLengths[id] = length
	idx.totalLength += int64(length)
	idx.docCount++

	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}

	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{id: id, count: count})
	}
}

// Delete removes a record from the index.
func (idx *MemoryIndex) Delete(id model.RecordID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleteLocked(id)
}

func (idx *MemoryIndex) deleteLocked(id model.RecordID) {
	length, ok := idx.docLengths[id]
	if !ok {
		return
	}

	// Slow (O(terms * docs)), but fine for a reference implementation.
	for t := range idx.inverted {
		postings := idx.inverted[t]
		for i, p := range postings {
			if p.id == id {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
	}

	delete(idx.docLengths, id)
	idx.totalLength -= int64(length)
	idx.docCount--
}

// Len returns the number of indexed records.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docCount
}

// Search returns the BM25 score of every record matching at least one query
// term.
func (idx *MemoryIndex) Search(text string) map[model.RecordID]float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tokens := idx.tokenize(text)
	scores := make(map[model.RecordID]float64)

	if idx.docCount == 0 {
		return scores
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)

	for _, t := range tokens {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}

		idf := idx.computeIDF(len(postings))

		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.id])

			// BM25 formula
			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/avgDL))
			scores[p.id] += idf * (num / denom)
		}
	}

	return scores
}

// TopK returns the k best-scoring records for the query text, sorted by
// descending score with ties broken by ascending ID.
func (idx *MemoryIndex) TopK(text string, k int) []Hit {
	scores := idx.Search(text)
	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.Less(hits[j].ID)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (idx *MemoryIndex) computeIDF(df int) float64 {
	// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
	N := float64(idx.docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}
