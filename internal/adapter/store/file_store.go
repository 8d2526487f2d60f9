package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"paperrag/internal/domain"
)

// FileStore persists the index as a JSON-lines chunk file plus an .npy
// embedding matrix. Line i of the chunk file belongs to row i of the matrix.
//
// Save and Reset are not transactional across the two files; a failed
// rebuild has to be retried from scratch.
type FileStore struct {
	dir            string
	chunksPath     string
	embeddingsPath string
}

func NewFileStore(dir, chunksPath, embeddingsPath string) *FileStore {
	return &FileStore{
		dir:            dir,
		chunksPath:     chunksPath,
		embeddingsPath: embeddingsPath,
	}
}

func (s *FileStore) Save(chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: refusing to save %d chunks with %d embeddings",
			domain.ErrIndexCorrupt, len(chunks), len(embeddings))
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	err := writeAtomic(s.chunksPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.chunksPath, err)
	}

	err = writeAtomic(s.embeddingsPath, func(w io.Writer) error {
		return writeMatrix(w, embeddings)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.embeddingsPath, err)
	}
	return nil
}

// Load reads both artifacts and checks that they line up.
func (s *FileStore) Load() ([]domain.Chunk, [][]float32, error) {
	for _, p := range []string{s.chunksPath, s.embeddingsPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s not found, run 'paperrag index --reset' first", domain.ErrIndexMissing, p)
		}
	}

	chunks, err := s.readChunks()
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.embeddingsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", s.embeddingsPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", s.embeddingsPath, err)
	}
	embeddings, err := readMatrix(f, info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexCorrupt, s.embeddingsPath, err)
	}

	if len(chunks) != len(embeddings) {
		return nil, nil, fmt.Errorf("%w: %d chunks but %d embedding rows",
			domain.ErrIndexCorrupt, len(chunks), len(embeddings))
	}

	return chunks, embeddings, nil
}

// Reset removes every persisted artifact, including the manifest.
func (s *FileStore) Reset() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear index directory: %w", err)
	}
	return os.MkdirAll(s.dir, 0755)
}

// Exists reports whether both artifacts are present.
func (s *FileStore) Exists() bool {
	for _, p := range []string{s.chunksPath, s.embeddingsPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (s *FileStore) readChunks() ([]domain.Chunk, error) {
	f, err := os.Open(s.chunksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.chunksPath, err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		var c domain.Chunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrIndexCorrupt, s.chunksPath, line, err)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.chunksPath, err)
	}
	return chunks, nil
}

// writeAtomic writes to a temporary file in the same directory and renames
// it over path once fully written.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
