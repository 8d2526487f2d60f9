package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"paperrag/internal/adapter/chunker"
	"paperrag/internal/adapter/embedding"
	"paperrag/internal/adapter/fs"
	"paperrag/internal/adapter/pdf"
	"paperrag/internal/adapter/store"
	"paperrag/internal/port"
)

type testEnv struct {
	papersDir    string
	indexDir     string
	manifestPath string
	store        *store.FileStore
	embedder     *embedding.MockEmbedder
	index        *IndexUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		papersDir:    filepath.Join(root, "papers"),
		indexDir:     filepath.Join(root, "index"),
		manifestPath: filepath.Join(root, "index", "manifest.db"),
		embedder:     embedding.NewMockEmbedder(64),
	}
	if err := os.MkdirAll(env.papersDir, 0755); err != nil {
		t.Fatal(err)
	}
	env.store = store.NewFileStore(env.indexDir,
		filepath.Join(env.indexDir, "chunks.jsonl"),
		filepath.Join(env.indexDir, "embeddings.npy"))

	chk, err := chunker.NewWindowChunker(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	env.index = NewIndexUseCase(
		env.store,
		func() (port.ManifestStore, error) { return store.OpenManifest(env.manifestPath) },
		fs.NewWalker([]string{"*.txt"}, nil),
		pdf.NewReader(),
		chk,
		env.embedder,
	)
	return env
}

func (e *testEnv) writePaper(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.papersDir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) options() IndexOptions {
	return IndexOptions{
		PapersDir:    e.papersDir,
		MetadataPath: filepath.Join(e.papersDir, "metadata.json"),
		BatchSize:    2,
		ChunkSize:    40,
		ChunkOverlap: 10,
	}
}

func (e *testEnv) build(t *testing.T) *IndexResult {
	t.Helper()
	result, err := e.index.Index(context.Background(), e.options())
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func (e *testEnv) openManifest(t *testing.T) *store.ManifestStore {
	t.Helper()
	ms, err := store.OpenManifestReadOnly(e.manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ms.Close() })
	return ms
}
