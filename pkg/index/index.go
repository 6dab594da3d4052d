// Package index holds the in-memory similarity index over document passages.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/perbu/docchat/pkg/embedder"
)

// ErrEmptyCorpus is returned when building an index from zero passages.
var ErrEmptyCorpus = errors.New("empty corpus: no passages to index")

// Passage is one retrievable unit of document text. Ordinal is the
// ingestion position, used to break similarity ties deterministically.
type Passage struct {
	Text    string
	Ordinal int
}

// Index holds passages and their embeddings for similarity search.
// Immutable after Build, so concurrent queries need no locking.
type Index struct {
	passages   []Passage
	embeddings [][]float32
	dimension  int
	embedder   embedder.Embedder
}

// Build embeds every passage and constructs the index. One provider call
// is made per passage; any failure aborts the build, there is no partial
// index.
func Build(ctx context.Context, texts []string, emb embedder.Embedder) (*Index, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyCorpus
	}

	passages := make([]Passage, len(texts))
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding passage %d: %w", i, err)
		}
		passages[i] = Passage{Text: text, Ordinal: i}
		embeddings[i] = vec
	}

	return &Index{
		passages:   passages,
		embeddings: embeddings,
		dimension:  len(embeddings[0]),
		embedder:   emb,
	}, nil
}

// Size returns the number of indexed passages.
func (ix *Index) Size() int {
	return len(ix.passages)
}

// Query embeds the question and returns the min(k, corpus size) most
// similar passages, most similar first. Equal scores are ordered by
// ingestion position.
func (ix *Index) Query(ctx context.Context, question string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryVec, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	type scored struct {
		passage Passage
		score   float32
	}

	results := make([]scored, len(ix.passages))
	for i := range ix.passages {
		results[i] = scored{
			passage: ix.passages[i],
			score:   CosineSimilarity(queryVec, ix.embeddings[i]),
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].passage.Ordinal < results[j].passage.Ordinal
	})

	if k > len(results) {
		k = len(results)
	}

	top := make([]Passage, k)
	for i := 0; i < k; i++ {
		top[i] = results[i].passage
	}
	return top, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// Mismatched lengths or a zero-norm vector score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
