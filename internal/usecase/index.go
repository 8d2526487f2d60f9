package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

// IndexUseCase rebuilds the whole index from a directory of papers.
type IndexUseCase struct {
	store        port.IndexStore
	openManifest func() (port.ManifestStore, error)
	walker       port.FileWalker
	reader       port.PageReader
	chunker      port.Chunker
	embedder     port.Embedder
}

func NewIndexUseCase(
	store port.IndexStore,
	openManifest func() (port.ManifestStore, error),
	walker port.FileWalker,
	reader port.PageReader,
	chunker port.Chunker,
	embedder port.Embedder,
) *IndexUseCase {
	return &IndexUseCase{
		store:        store,
		openManifest: openManifest,
		walker:       walker,
		reader:       reader,
		chunker:      chunker,
		embedder:     embedder,
	}
}

// IndexOptions controls a single build.
type IndexOptions struct {
	PapersDir    string
	MetadataPath string
	Reset        bool
	MaxPapers    int // 0 = no cap
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int

	// OnChunked is called after each source has been chunked.
	OnChunked func(done, total int, source string)
	// OnEmbedded is called after each embedding batch.
	OnEmbedded func(done, total int)
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Sources   []domain.SourceRecord
	Chunks    int
	Dimension int
}

// Index reads, chunks and embeds every source, then replaces the stored
// artifacts. Nothing is written until all embeddings have succeeded.
func (u *IndexUseCase) Index(ctx context.Context, opts IndexOptions) (*IndexResult, error) {
	info, err := os.Stat(opts.PapersDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: papers directory %s does not exist", domain.ErrConfig, opts.PapersDir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrConfig, opts.PapersDir)
	}

	if opts.Reset {
		log.Info().Msg("resetting index")
		if err := u.store.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset index: %w", err)
		}
	}

	files, err := u.walker.Walk(opts.PapersDir)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", opts.PapersDir, err)
	}
	if opts.MaxPapers > 0 && len(files) > opts.MaxPapers {
		files = files[:opts.MaxPapers]
	}
	log.Debug().Int("sources", len(files)).Str("dir", opts.PapersDir).Msg("collected sources")

	links := SourceLinks(ReadMetadata(opts.MetadataPath))

	var chunks []domain.Chunk
	sources := make([]domain.SourceRecord, 0, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileChunks, pages, err := u.chunkFile(file)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, fileChunks...)
		sources = append(sources, domain.SourceRecord{
			SourceFile: file.Name,
			Pages:      pages,
			Chunks:     len(fileChunks),
			URL:        links[file.Name],
		})
		log.Debug().Str("source", file.Name).Int("pages", pages).Int("chunks", len(fileChunks)).Msg("chunked")

		if opts.OnChunked != nil {
			opts.OnChunked(i+1, len(files), file.Name)
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text found in %s", domain.ErrIngestEmpty, opts.PapersDir)
	}

	embeddings, err := u.embedAll(ctx, chunks, opts)
	if err != nil {
		return nil, err
	}

	if err := u.store.Save(chunks, embeddings); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	result := &IndexResult{
		Sources:   sources,
		Chunks:    len(chunks),
		Dimension: len(embeddings[0]),
	}
	if err := u.writeManifest(result, opts); err != nil {
		return nil, err
	}
	return result, nil
}

// chunkFile splits every page of a source. chunk_id restarts at 1 on each page.
func (u *IndexUseCase) chunkFile(file port.FileInfo) ([]domain.Chunk, int, error) {
	pages, err := u.reader.ReadPages(file.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", file.Name, err)
	}

	var chunks []domain.Chunk
	for _, page := range pages {
		pieces, err := u.chunker.Split(page.Text)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to chunk %s page %d: %w", file.Name, page.Number, err)
		}
		for i, text := range pieces {
			chunks = append(chunks, domain.Chunk{
				SourceFile: file.Name,
				Page:       page.Number,
				ChunkID:    i + 1,
				Text:       text,
			})
		}
	}
	return chunks, len(pages), nil
}

func (u *IndexUseCase) embedAll(ctx context.Context, chunks []domain.Chunk, opts IndexOptions) ([][]float32, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: embedded %d of %d chunks", domain.ErrCollaborator, len(vectors), len(texts))
		}
		for i, v := range vectors {
			if len(embeddings) > 0 && len(v) != len(embeddings[0]) {
				return nil, fmt.Errorf("%w: chunk %d embedded with dimension %d, expected %d",
					domain.ErrCollaborator, start+i, len(v), len(embeddings[0]))
			}
			embeddings = append(embeddings, v)
		}

		if opts.OnEmbedded != nil {
			opts.OnEmbedded(end, len(chunks))
		}
	}
	return embeddings, nil
}

func (u *IndexUseCase) writeManifest(result *IndexResult, opts IndexOptions) error {
	ms, err := u.openManifest()
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer ms.Close()

	m := domain.Manifest{
		EmbeddingModel: u.embedder.ModelName(),
		Dimension:      result.Dimension,
		ChunkSize:      opts.ChunkSize,
		ChunkOverlap:   opts.ChunkOverlap,
		ChunkCount:     result.Chunks,
		SourceCount:    len(result.Sources),
		BuiltAt:        time.Now().UTC(),
	}
	if err := ms.Write(m, result.Sources); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
