package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/semsearch/internal/embed"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

// NoResultsMessage is returned instead of results when a corpus is empty.
const NoResultsMessage = "No relevant documents found."

// SourcePrefix prefixes document ids in result sources.
const SourcePrefix = "/corpus/"

// Result is one ranked document.
type Result struct {
	Rank    int     `json:"rank"`
	Total   int     `json:"total"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
}

// QueryResponse is the outcome of a query. Message carries NoResultsMessage
// when the corpus holds no documents; Results is then empty.
type QueryResponse struct {
	Index   string   `json:"index"`
	Results []Result `json:"results"`
	Message string   `json:"message,omitempty"`
}

// Empty reports whether the response is the no-results sentinel.
func (r *QueryResponse) Empty() bool {
	return len(r.Results) == 0
}

// QueryEngine answers similarity queries from cached corpora. It never
// mutates a corpus.
type QueryEngine struct {
	cache    *Cache
	embedder embed.Embedder
	topK     int
	maxTopK  int
}

// NewQueryEngine creates a query engine. topK is the default result count
// and maxTopK the upper bound on any request.
func NewQueryEngine(cache *Cache, embedder embed.Embedder, topK, maxTopK int) *QueryEngine {
	if topK <= 0 {
		topK = 3
	}
	if maxTopK <= 0 {
		maxTopK = topK
	}
	topK = min(topK, maxTopK)
	return &QueryEngine{cache: cache, embedder: embedder, topK: topK, maxTopK: maxTopK}
}

// effectiveTopK resolves a requested result count.
func (q *QueryEngine) effectiveTopK(requested int) int {
	if requested <= 0 {
		return q.topK
	}
	return min(requested, q.maxTopK)
}

// Query ranks the documents of name against text.
func (q *QueryEngine) Query(ctx context.Context, name, text string, topK int) (*QueryResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, serrors.MissingField("query_text")
	}

	engine, corpus, err := q.cache.GetOrBuildEngine(ctx, name)
	if err != nil {
		return nil, err
	}
	if corpus.Len() == 0 {
		return &QueryResponse{Index: name, Results: []Result{}, Message: NoResultsMessage}, nil
	}

	vec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrCodeEmbeddingFailed, fmt.Errorf("embed query: %w", err)).
			WithDetail("index", name)
	}
	if len(vec) != corpus.Dimension {
		return nil, serrors.Newf(serrors.ErrCodeDimensionMismatch,
			"query embedding has %d dimensions, index %q holds %d", len(vec), name, corpus.Dimension).
			WithDetail("index", name)
	}

	hits := engine.Search(vec, q.effectiveTopK(topK))
	docs := corpus.Documents()
	results := make([]Result, len(hits))
	for i, h := range hits {
		d := docs[h.Position]
		results[i] = Result{
			Rank:    i + 1,
			Total:   len(hits),
			Score:   h.Score,
			Source:  SourcePrefix + d.ID,
			Content: d.Text,
		}
	}
	return &QueryResponse{Index: name, Results: results}, nil
}

// FormatResults renders a response as plain text, one block per result.
func FormatResults(r *QueryResponse) string {
	if r == nil || len(r.Results) == 0 {
		return NoResultsMessage
	}
	blocks := make([]string, len(r.Results))
	for i, res := range r.Results {
		blocks[i] = fmt.Sprintf("--- Result %d/%d (Score: %.2f) ---\nSource: %s\nContent: %s",
			res.Rank, res.Total, res.Score, res.Source, res.Content)
	}
	return strings.Join(blocks, "\n\n")
}
