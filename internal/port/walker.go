package port

import "paperrag/internal/domain"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	Name    string
	ModTime int64
	Size    int64
}

// PageReader extracts per-page text from a source document.
type PageReader interface {
	ReadPages(path string) ([]domain.Page, error)
}
