// Package retrieval provides similarity search over the maternal care
// reference corpus.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Passage is one retrieved chunk of the reference corpus.
type Passage struct {
	Text  string  `json:"text"`
	Page  int     `json:"page"`
	Score float32 `json:"score"`
}

// Index is the similarity search capability consumed by report generation.
// Results are ordered by descending similarity.
type Index interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error)
}

// Embedder turns texts into vectors. Implemented by the openai client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

var ErrEmptyIndex = errors.New("retrieval index is empty")

// Chunk is a stored piece of the corpus with its embedding.
type Chunk struct {
	Text   string    `json:"text"`
	Page   int       `json:"page"`
	Vector []float32 `json:"vector"`
}

// VectorIndex is an in-memory cosine similarity index. It is read-only
// after construction and safe for concurrent use.
type VectorIndex struct {
	embedder Embedder
	chunks   []Chunk
	mu       sync.RWMutex
}

// NewVectorIndex normalises the chunk vectors and wraps them in an index.
func NewVectorIndex(embedder Embedder, chunks []Chunk) (*VectorIndex, error) {
	if embedder == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	dim := len(chunks[0].Vector)
	stored := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) != dim || dim == 0 {
			return nil, fmt.Errorf("retrieval: chunk %d has dimension %d, want %d", i, len(c.Vector), dim)
		}
		c.Vector = normalize(c.Vector)
		stored[i] = c
	}
	return &VectorIndex{embedder: embedder, chunks: stored}, nil
}

// Len returns the number of indexed chunks.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

func (x *VectorIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	q := normalize(vecs[0])

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(q) != len(x.chunks[0].Vector) {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(q), len(x.chunks[0].Vector))
	}
	scored := make([]Passage, len(x.chunks))
	for i, c := range x.chunks {
		scored[i] = Passage{Text: c.Text, Page: c.Page, Score: dot(q, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := float32(math.Sqrt(sum))
	for i, f := range v {
		out[i] = f / n
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
