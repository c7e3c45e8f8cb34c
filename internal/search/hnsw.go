package search

import (
	"encoding/binary"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/semsearch/internal/config"
)

// HNSWConfig tunes the approximate engine.
type HNSWConfig struct {
	// M is the maximum neighbours per node.
	M int
	// EfSearch is the candidate list size during search.
	EfSearch int
	// Oversample multiplies k to get the candidate count re-scored exactly.
	Oversample int
	// Seed makes graph construction reproducible.
	Seed int64
}

// DefaultHNSWConfig returns the settings used when none are configured.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfSearch: 64, Oversample: 4, Seed: 1}
}

// HNSWEngine retrieves candidates from a coder/hnsw graph and re-scores them
// with Cosine, so returned scores and tie order match ExactEngine for every
// candidate it finds.
//
// Vectors with the same direction share one graph node keyed by the lowest
// position. A candidate node expands to all of its positions, so documents
// with identical embeddings are ranked among themselves by insertion order.
type HNSWEngine struct {
	graph   *hnsw.Graph[int]
	vectors [][]float32
	// dups maps a node key to the later positions it stands for.
	dups map[int][]int
	// zeros holds positions of all-zero vectors, which cosine distance
	// cannot place in the graph. They always score 0.
	zeros      []int
	oversample int
}

// NewHNSWEngine builds a graph over vectors. The slice is retained.
func NewHNSWEngine(vectors [][]float32, cfg HNSWConfig) *HNSWEngine {
	def := DefaultHNSWConfig()
	if cfg.M <= 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = def.Oversample
	}

	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.Ml = 1 / math.Log(float64(cfg.M))
	g.EfSearch = cfg.EfSearch
	g.Rng = rand.New(rand.NewSource(cfg.Seed))

	e := &HNSWEngine{graph: g, vectors: vectors, dups: make(map[int][]int), oversample: cfg.Oversample}

	start := time.Now()
	keys := make(map[string]int, len(vectors))
	for i, v := range vectors {
		unit, ok := normalized(v)
		if !ok {
			e.zeros = append(e.zeros, i)
			continue
		}
		k := directionKey(unit)
		if first, seen := keys[k]; seen {
			e.dups[first] = append(e.dups[first], i)
			continue
		}
		keys[k] = i
		g.Add(hnsw.MakeNode(i, unit))
	}
	slog.Debug("hnsw graph built",
		slog.Int("vectors", len(vectors)),
		slog.Int("nodes", g.Len()),
		slog.Int("zero_vectors", len(e.zeros)),
		slog.Duration("duration", time.Since(start)))
	return e
}

// Search implements Engine.
func (e *HNSWEngine) Search(query []float32, k int) []Hit {
	if k <= 0 || len(e.vectors) == 0 {
		return []Hit{}
	}

	unit, ok := normalized(query)
	if !ok {
		// Every score is 0; position order decides.
		n := min(k, len(e.vectors))
		hits := make([]Hit, n)
		for i := range hits {
			hits[i] = Hit{Position: i}
		}
		return hits
	}

	hits := make([]Hit, 0, k*e.oversample+len(e.zeros))
	if nodes := e.graph.Len(); nodes > 0 {
		for _, node := range e.graph.Search(unit, min(k*e.oversample, nodes)) {
			hits = append(hits, Hit{Position: node.Key, Score: Cosine(query, e.vectors[node.Key])})
			for _, p := range e.dups[node.Key] {
				hits = append(hits, Hit{Position: p, Score: Cosine(query, e.vectors[p])})
			}
		}
	}
	for _, p := range e.zeros {
		hits = append(hits, Hit{Position: p})
	}
	return rank(hits, k)
}

// Len implements Engine.
func (e *HNSWEngine) Len() int { return len(e.vectors) }

var _ Engine = (*HNSWEngine)(nil)

// directionKey identifies a unit vector by its exact float32 bits.
func directionKey(unit []float32) string {
	b := make([]byte, 4*len(unit))
	for i, x := range unit {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return string(b)
}

// normalized returns a unit-length copy of v, or false for a zero vector.
func normalized(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, true
}

// Builder constructs an engine from a corpus snapshot.
type Builder func(vectors [][]float32) Engine

// NewBuilder returns the Builder selected by cfg. With the hnsw engine,
// snapshots below HNSWMinDocuments still use exact search.
func NewBuilder(cfg config.SearchConfig) Builder {
	if cfg.Engine != config.EngineHNSW {
		return func(vectors [][]float32) Engine { return NewExactEngine(vectors) }
	}
	hc := HNSWConfig{
		M:          cfg.HNSWM,
		EfSearch:   cfg.HNSWEfSearch,
		Oversample: cfg.HNSWOversample,
		Seed:       cfg.HNSWSeed,
	}
	return func(vectors [][]float32) Engine {
		if len(vectors) < cfg.HNSWMinDocuments {
			return NewExactEngine(vectors)
		}
		return NewHNSWEngine(vectors, hc)
	}
}
