package retriever

import (
	"fmt"
	"math"
	"sort"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

// normEpsilon keeps division by a vector norm finite.
const normEpsilon = 1e-12

// CosineRetriever ranks stored chunks by cosine similarity to a query vector.
// Stored rows are normalized once when the retriever is built.
type CosineRetriever struct {
	chunks []domain.Chunk
	rows   [][]float32
	dim    int
}

var _ port.Retriever = (*CosineRetriever)(nil)

// NewCosineRetriever pairs chunks with their embedding rows by position.
func NewCosineRetriever(chunks []domain.Chunk, embeddings [][]float32) (*CosineRetriever, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks but %d embedding rows",
			domain.ErrIndexCorrupt, len(chunks), len(embeddings))
	}
	dim := 0
	if len(embeddings) > 0 {
		dim = len(embeddings[0])
	}
	for i, row := range embeddings {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: embedding row %d has dimension %d, expected %d",
				domain.ErrIndexCorrupt, i, len(row), dim)
		}
		if !finite(row) {
			return nil, fmt.Errorf("%w: embedding row %d holds a non-finite value", domain.ErrIndexCorrupt, i)
		}
	}
	return &CosineRetriever{
		chunks: chunks,
		rows:   NormalizeRows(embeddings),
		dim:    dim,
	}, nil
}

// FromStore loads the persisted index and builds a retriever over it.
func FromStore(store port.IndexStore) (*CosineRetriever, error) {
	chunks, embeddings, err := store.Load()
	if err != nil {
		return nil, err
	}
	return NewCosineRetriever(chunks, embeddings)
}

// Loader defers loading the index until the returned function is called.
func Loader(store port.IndexStore) func() (port.Retriever, error) {
	return func() (port.Retriever, error) {
		return FromStore(store)
	}
}

func (r *CosineRetriever) Len() int { return len(r.chunks) }

func (r *CosineRetriever) Dimension() int { return r.dim }

// Retrieve returns up to k chunks ordered by descending similarity.
func (r *CosineRetriever) Retrieve(query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrConfig, k)
	}
	if len(r.rows) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != r.dim {
		return nil, fmt.Errorf("%w: query has dimension %d but index has %d",
			domain.ErrIndexCorrupt, len(query), r.dim)
	}

	if !finite(query) {
		return nil, fmt.Errorf("%w: query embedding holds a non-finite value", domain.ErrCollaborator)
	}

	q := Normalize(query)
	scores := make([]float64, len(r.rows))
	for i, row := range r.rows {
		scores[i] = dot(row, q)
	}

	top := TopK(scores, k)
	results := make([]domain.ScoredChunk, len(top))
	for i, idx := range top {
		results[i] = domain.ScoredChunk{Chunk: r.chunks[idx], Score: scores[idx]}
	}
	return results, nil
}

// Normalize returns v scaled to unit length. The norm is floored at
// normEpsilon so a zero vector stays zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Max(math.Sqrt(sum), normEpsilon)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func NormalizeRows(rows [][]float32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		out[i] = Normalize(row)
	}
	return out
}

// TopK returns the indices of the k highest scores, best first. Equal
// scores keep storage order.
func TopK(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	// Rounding can push unit vectors slightly past 1.
	return math.Max(-1, math.Min(1, sum))
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
