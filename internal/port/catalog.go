package port

import (
	"context"
	"io"

	"paperrag/internal/domain"
)

// Catalog is a remote source of papers.
type Catalog interface {
	// Search returns up to max papers matching query, newest first.
	// PDFFile is left empty; the caller names the local file.
	Search(ctx context.Context, query string, max int) ([]CatalogEntry, error)

	// Download streams the PDF of entry into w.
	Download(ctx context.Context, entry CatalogEntry, w io.Writer) error
}

type CatalogEntry struct {
	Paper  domain.Paper
	PDFURL string
}
