// Package search ranks corpus vectors against a query vector.
//
// Engines are derived state: they are built from a corpus snapshot, never
// persisted, and rebuilt whenever the corpus changes.
package search

import (
	"math"
	"sort"
)

// Hit is one ranked match. Position indexes the vectors the engine was
// built from, which follow corpus insertion order.
type Hit struct {
	Position int
	Score    float64
}

// Engine answers nearest-neighbour queries over a fixed set of vectors.
type Engine interface {
	// Search returns at most k hits, best first. Equal scores are ordered
	// by ascending position.
	Search(query []float32, k int) []Hit

	// Len returns the number of indexed vectors.
	Len() int
}

// Cosine returns the cosine similarity of a and b computed in float64.
// It returns 0 when either vector is all-zero or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank sorts hits by score descending, position ascending, and truncates to k.
func rank(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// ExactEngine scores every vector. It is the reference ordering.
type ExactEngine struct {
	vectors [][]float32
}

// NewExactEngine indexes vectors by position. The slice is retained.
func NewExactEngine(vectors [][]float32) *ExactEngine {
	return &ExactEngine{vectors: vectors}
}

// Search implements Engine.
func (e *ExactEngine) Search(query []float32, k int) []Hit {
	if k <= 0 || len(e.vectors) == 0 {
		return []Hit{}
	}
	hits := make([]Hit, len(e.vectors))
	for i, v := range e.vectors {
		hits[i] = Hit{Position: i, Score: Cosine(query, v)}
	}
	return rank(hits, k)
}

// Len implements Engine.
func (e *ExactEngine) Len() int { return len(e.vectors) }

var _ Engine = (*ExactEngine)(nil)
