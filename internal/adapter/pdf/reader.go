package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

// PDFReader extracts the plain text of every page. Pages without a
// content stream yield empty text.
type PDFReader struct{}

func (PDFReader) ReadPages(path string) (pages []domain.Page, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to parse %s: %v", filepath.Base(path), r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}

	numPages := reader.NumPage()
	pages = make([]domain.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to read page %d of %s: %w", i, filepath.Base(path), err)
			}
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}

// TextReader reads plain-text files, treating form feeds as page breaks.
type TextReader struct{}

func (TextReader) ReadPages(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]domain.Page, len(parts))
	for i, part := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: part}
	}
	return pages, nil
}

// Reader dispatches on the file extension.
type Reader struct {
	readers map[string]port.PageReader
}

func NewReader() *Reader {
	return &Reader{readers: map[string]port.PageReader{
		".pdf": PDFReader{},
		".txt": TextReader{},
	}}
}

func (r *Reader) ReadPages(path string) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := r.readers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported source type %q: %s", ext, filepath.Base(path))
	}
	return reader.ReadPages(path)
}
