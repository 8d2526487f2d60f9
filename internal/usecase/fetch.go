package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"paperrag/internal/adapter/arxiv"
	"paperrag/internal/domain"
	"paperrag/internal/port"
)

// FetchUseCase downloads papers from a catalog into the papers directory.
type FetchUseCase struct {
	catalog port.Catalog
}

func NewFetchUseCase(catalog port.Catalog) *FetchUseCase {
	return &FetchUseCase{catalog: catalog}
}

type FetchOptions struct {
	Query        string
	MaxResults   int
	OutDir       string
	MetadataPath string

	OnDownloaded func(done, total int)
}

// FetchFailure is one paper that could not be downloaded.
type FetchFailure struct {
	PaperID string
	Err     error
}

type FetchResult struct {
	Papers   []domain.Paper
	Failures []FetchFailure
}

// Err joins all per-paper failures, or returns nil.
func (r *FetchResult) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s: %w", f.PaperID, f.Err)
	}
	return errors.Join(errs...)
}

// Fetch downloads every search hit. A failed download is logged and
// skipped; only a failed search aborts the run.
func (u *FetchUseCase) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if opts.MaxResults <= 0 {
		return nil, fmt.Errorf("%w: max results must be positive, got %d", domain.ErrConfig, opts.MaxResults)
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.OutDir, err)
	}

	entries, err := u.catalog.Search(ctx, opts.Query, opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	log.Info().Int("results", len(entries)).Str("query", opts.Query).Msg("catalog search complete")

	result := &FetchResult{Papers: make([]domain.Paper, 0, len(entries))}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		paper := entry.Paper
		paper.PDFFile = arxiv.FileName(paper)
		if err := u.download(ctx, entry, filepath.Join(opts.OutDir, paper.PDFFile)); err != nil {
			log.Warn().Err(err).Str("paper", paper.PaperID).Msg("download failed")
			result.Failures = append(result.Failures, FetchFailure{PaperID: paper.PaperID, Err: err})
		} else {
			result.Papers = append(result.Papers, paper)
		}

		if opts.OnDownloaded != nil {
			opts.OnDownloaded(i+1, len(entries))
		}
	}

	if err := WriteMetadata(opts.MetadataPath, result.Papers); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return result, nil
}

// download writes to a temporary file first so an interrupted transfer
// never leaves a truncated PDF behind.
func (u *FetchUseCase) download(ctx context.Context, entry port.CatalogEntry, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := u.catalog.Download(ctx, entry, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
