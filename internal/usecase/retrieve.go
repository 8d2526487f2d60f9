package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

// RetrieveUseCase answers questions against the persisted index.
type RetrieveUseCase struct {
	load     func() (port.Retriever, error)
	manifest port.ManifestStore // optional
	embedder port.Embedder
	composer *AnswerComposer
}

// NewRetrieveUseCase wires the query path. load opens the searchable index
// on every query. manifest may be nil for indexes built without one;
// composer may be nil when only retrieval is needed.
func NewRetrieveUseCase(
	load func() (port.Retriever, error),
	manifest port.ManifestStore,
	embedder port.Embedder,
	composer *AnswerComposer,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		load:     load,
		manifest: manifest,
		embedder: embedder,
		composer: composer,
	}
}

// Retrieve returns the topK chunks most similar to question.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, question string, topK int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrConfig)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrConfig, topK)
	}

	// Load before the network call so a missing index fails fast.
	r, err := u.load()
	if err != nil {
		return nil, err
	}
	if err := u.checkManifest(r); err != nil {
		return nil, err
	}
	if r.Len() == 0 {
		return []domain.ScoredChunk{}, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query embedding, got %d", domain.ErrCollaborator, len(vectors))
	}

	results, err := r.Retrieve(vectors[0], topK)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("candidates", r.Len()).Int("returned", len(results)).Msg("retrieved")
	return results, nil
}

// Ask retrieves context for question and composes an answer from it.
func (u *RetrieveUseCase) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	if u.composer == nil {
		return domain.Answer{}, fmt.Errorf("%w: no generation model configured", domain.ErrConfig)
	}
	docs, err := u.Retrieve(ctx, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	return u.composer.Compose(ctx, question, docs)
}

// checkManifest rejects queries whose embedding space differs from the
// one the index was built with.
func (u *RetrieveUseCase) checkManifest(r port.Retriever) error {
	if u.manifest == nil {
		return nil
	}
	m, ok, err := u.manifest.Manifest()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if m.EmbeddingModel != "" && m.EmbeddingModel != u.embedder.ModelName() {
		return fmt.Errorf("%w: index was built with embedding model %q but %q is configured; rebuild the index",
			domain.ErrConfig, m.EmbeddingModel, u.embedder.ModelName())
	}
	if m.ChunkCount != r.Len() {
		return fmt.Errorf("%w: manifest records %d chunks but the index holds %d",
			domain.ErrIndexCorrupt, m.ChunkCount, r.Len())
	}
	return nil
}
