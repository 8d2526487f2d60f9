package port

import "paperrag/internal/domain"

// Retriever ranks stored chunks against a query vector. An approximate
// index can replace the exhaustive scan behind the same contract.
type Retriever interface {
	// Retrieve returns at most k chunks ordered by descending score.
	Retrieve(query []float32, k int) ([]domain.ScoredChunk, error)

	// Len is the number of searchable chunks.
	Len() int
}
