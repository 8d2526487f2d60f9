package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

type fakeCatalog struct {
	entries   []port.CatalogEntry
	searchErr error
	failIDs   map[string]bool
}

func (c *fakeCatalog) Search(_ context.Context, _ string, max int) ([]port.CatalogEntry, error) {
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if max < len(c.entries) {
		return c.entries[:max], nil
	}
	return c.entries, nil
}

func (c *fakeCatalog) Download(_ context.Context, e port.CatalogEntry, w io.Writer) error {
	if c.failIDs[e.Paper.PaperID] {
		io.WriteString(w, "partial")
		return fmt.Errorf("%w: connection reset", domain.ErrCollaborator)
	}
	_, err := io.WriteString(w, "%PDF "+e.Paper.PaperID)
	return err
}

func catalogEntry(id, title string) port.CatalogEntry {
	return port.CatalogEntry{
		Paper:  domain.Paper{PaperID: id, Title: title, ArxivURL: "http://arxiv.org/abs/" + id},
		PDFURL: "http://arxiv.org/pdf/" + id,
	}
}

func TestFetchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	catalog := &fakeCatalog{
		entries: []port.CatalogEntry{
			catalogEntry("2401.1", "First: Paper"),
			catalogEntry("2401.2", "Second Paper"),
			catalogEntry("2401.3", "Third Paper"),
		},
		failIDs: map[string]bool{"2401.2": true},
	}

	var progress int
	result, err := NewFetchUseCase(catalog).Fetch(context.Background(), FetchOptions{
		Query:        "cat:cs.AI",
		MaxResults:   3,
		OutDir:       dir,
		MetadataPath: filepath.Join(dir, "metadata.json"),
		OnDownloaded: func(done, total int) { progress = done },
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Papers) != 2 || len(result.Failures) != 1 || progress != 3 {
		t.Fatalf("unexpected result: %d papers, %d failures, progress %d", len(result.Papers), len(result.Failures), progress)
	}
	if !errors.Is(result.Err(), domain.ErrCollaborator) {
		t.Errorf("expected aggregated ErrCollaborator, got %v", result.Err())
	}

	if _, err := os.Stat(filepath.Join(dir, "2401.1_First Paper.pdf")); err != nil {
		t.Errorf("expected downloaded pdf: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2401.2_Second Paper.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no file for failed download, got %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".download-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}

	papers := ReadMetadata(filepath.Join(dir, "metadata.json"))
	if len(papers) != 2 || papers[1].PDFFile != "2401.3_Third Paper.pdf" {
		t.Errorf("unexpected metadata %+v", papers)
	}
	links := SourceLinks(papers)
	if links["2401.1_First Paper.pdf"] != "http://arxiv.org/abs/2401.1" {
		t.Errorf("unexpected links %v", links)
	}
}

func TestFetchSearchFailure(t *testing.T) {
	catalog := &fakeCatalog{searchErr: domain.ErrCollaborator}
	dir := t.TempDir()
	_, err := NewFetchUseCase(catalog).Fetch(context.Background(), FetchOptions{
		Query:        "x",
		MaxResults:   1,
		OutDir:       dir,
		MetadataPath: filepath.Join(dir, "metadata.json"),
	})
	if !errors.Is(err, domain.ErrCollaborator) {
		t.Errorf("expected ErrCollaborator, got %v", err)
	}
}

func TestFetchNoFailuresErrNil(t *testing.T) {
	r := &FetchResult{}
	if r.Err() != nil {
		t.Errorf("expected nil, got %v", r.Err())
	}
}

func TestReadMetadataTolerant(t *testing.T) {
	dir := t.TempDir()
	if papers := ReadMetadata(filepath.Join(dir, "missing.json")); papers != nil {
		t.Errorf("expected nil for missing file, got %v", papers)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not a list"), 0644); err != nil {
		t.Fatal(err)
	}
	if papers := ReadMetadata(bad); papers != nil {
		t.Errorf("expected nil for malformed file, got %v", papers)
	}
}
