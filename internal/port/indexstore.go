package port

import "paperrag/internal/domain"

// IndexStore persists the ordered chunk sequence together with its
// embedding matrix. Row i of the matrix belongs to chunks[i].
type IndexStore interface {
	Save(chunks []domain.Chunk, embeddings [][]float32) error

	Load() ([]domain.Chunk, [][]float32, error)

	Reset() error
}
