package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"paperrag/internal/domain"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index")
	return NewFileStore(dir, filepath.Join(dir, "chunks.jsonl"), filepath.Join(dir, "embeddings.npy")), dir
}

func sampleIndex() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{SourceFile: "2401.00001_Attention.pdf", Page: 1, ChunkID: 1, Text: "Attention is all you need."},
		{SourceFile: "2401.00001_Attention.pdf", Page: 1, ChunkID: 2, Text: "Multi-head attention <heads> & layers."},
		{SourceFile: "2401.00002_Diffusion.pdf", Page: 3, ChunkID: 1, Text: "Denoising diffusion probabilistic models – ε-prediction."},
	}
	embeddings := [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{-1.5, 0, 2.25, 1e-7},
		{3, 2, 1, 0},
	}
	return chunks, embeddings
}

func TestFileStoreRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	chunks, embeddings := sampleIndex()

	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}
	if !st.Exists() {
		t.Error("expected store to exist after save")
	}

	gotChunks, gotEmbeddings, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(gotChunks, chunks) {
		t.Errorf("chunks differ:\n got %+v\nwant %+v", gotChunks, chunks)
	}
	if !reflect.DeepEqual(gotEmbeddings, embeddings) {
		t.Errorf("embeddings differ:\n got %v\nwant %v", gotEmbeddings, embeddings)
	}
}

func TestFileStoreChunkFileIsJSONLines(t *testing.T) {
	st, dir := newTestStore(t)
	chunks, embeddings := sampleIndex()
	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "chunks.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != len(chunks) {
		t.Fatalf("expected %d lines, got %d", len(chunks), len(lines))
	}
	for _, field := range []string{`"source_file"`, `"page"`, `"chunk_id"`, `"text"`} {
		if !strings.Contains(lines[0], field) {
			t.Errorf("line missing field %s: %s", field, lines[0])
		}
	}
}

func TestFileStoreMissing(t *testing.T) {
	st, dir := newTestStore(t)

	if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexMissing) {
		t.Errorf("expected ErrIndexMissing on empty dir, got %v", err)
	}

	chunks, embeddings := sampleIndex()
	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "embeddings.npy")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexMissing) {
		t.Errorf("expected ErrIndexMissing without matrix, got %v", err)
	}
	if st.Exists() {
		t.Error("expected Exists to be false")
	}
}

func TestFileStoreCountMismatch(t *testing.T) {
	st, dir := newTestStore(t)
	chunks, embeddings := sampleIndex()
	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}

	// Drop the last chunk line behind the store's back.
	path := filepath.Join(dir, "chunks.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if err := os.WriteFile(path, []byte(strings.Join(lines[:2], "")), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestFileStoreSaveRejectsMismatch(t *testing.T) {
	st, _ := newTestStore(t)
	chunks, embeddings := sampleIndex()

	if err := st.Save(chunks, embeddings[:2]); !errors.Is(err, domain.ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestFileStoreBadChunkLine(t *testing.T) {
	st, dir := newTestStore(t)
	chunks, embeddings := sampleIndex()
	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chunks.jsonl"), []byte("{not json}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestFileStoreReset(t *testing.T) {
	st, dir := newTestStore(t)
	chunks, embeddings := sampleIndex()
	if err := st.Save(chunks, embeddings); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.db"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := st.Reset(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty index dir after reset, found %d entries", len(entries))
	}
	if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexMissing) {
		t.Errorf("expected ErrIndexMissing after reset, got %v", err)
	}
}

func TestFileStoreEmpty(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.Save(nil, nil); err != nil {
		t.Fatal(err)
	}

	chunks, embeddings, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 || len(embeddings) != 0 {
		t.Errorf("expected empty index, got %d/%d", len(chunks), len(embeddings))
	}
}

func TestMatrixHeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMatrix(&buf, [][]float32{{1, 2, 3}, {4, 5, 6}}); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte("\x93NUMPY\x01\x00")) {
		t.Fatalf("bad magic: %q", data[:8])
	}
	headerLen := int(data[8]) | int(data[9])<<8
	if (10+headerLen)%64 != 0 {
		t.Errorf("header not 64-byte aligned: %d", 10+headerLen)
	}
	if data[10+headerLen-1] != '\n' {
		t.Error("header must end with a newline")
	}
	if !bytes.Contains(data[:10+headerLen], []byte("'shape': (2, 3)")) {
		t.Errorf("unexpected header %q", data[10:10+headerLen])
	}
	if len(data) != 10+headerLen+2*3*4 {
		t.Errorf("unexpected file size %d", len(data))
	}
}

func TestMatrixRejectsRaggedRows(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMatrix(&buf, [][]float32{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged matrix")
	}
}

func TestParseHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		rows    int
		dim     int
		wide    bool
		wantErr bool
	}{
		{"f4", "{'descr': '<f4', 'fortran_order': False, 'shape': (5, 1536), }", 5, 1536, false, false},
		{"f8", "{'descr': '<f8', 'fortran_order': False, 'shape': (2, 3), }", 2, 3, true, false},
		{"empty_1d", "{'descr': '<f4', 'fortran_order': False, 'shape': (0,), }", 0, 0, false, false},
		{"fortran", "{'descr': '<f4', 'fortran_order': True, 'shape': (2, 3), }", 0, 0, false, true},
		{"int_dtype", "{'descr': '<i8', 'fortran_order': False, 'shape': (2, 3), }", 0, 0, false, true},
		{"rank3", "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3, 4), }", 0, 0, false, true},
		{"negative_rows", "{'descr': '<f4', 'fortran_order': False, 'shape': (-1, 4), }", 0, 0, false, true},
		{"negative_dim", "{'descr': '<f4', 'fortran_order': False, 'shape': (1, -4), }", 0, 0, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, dim, wide, err := parseHeader(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rows != tc.rows || dim != tc.dim || wide != tc.wide {
				t.Errorf("got (%d, %d, %v), want (%d, %d, %v)", rows, dim, wide, tc.rows, tc.dim, tc.wide)
			}
		})
	}
}

// rawMatrix builds an npy v1 file with an arbitrary header and payload.
func rawMatrix(header string, payload []byte) []byte {
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

func float32Payload(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestFileStoreRejectsMalformedMatrix(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	cases := []struct {
		name    string
		shape   string
		payload []byte
	}{
		{"negative_rows", "(-1, 4)", nil},
		{"negative_dim", "(1, -4)", nil},
		{"oversize_rows", "(10000000000, 1536)", float32Payload(1, 2, 3, 4)},
		{"truncated_payload", "(2, 2)", float32Payload(1, 2, 3)},
		{"empty_rows", "(1000000000, 0)", nil},
		{"nan_value", "(2, 2)", float32Payload(1, 0, nan, 1)},
		{"inf_value", "(1, 2)", float32Payload(inf, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, dir := newTestStore(t)
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "chunks.jsonl"), nil, 0644); err != nil {
				t.Fatal(err)
			}
			header := "{'descr': '<f4', 'fortran_order': False, 'shape': " + tc.shape + ", }"
			if err := os.WriteFile(filepath.Join(dir, "embeddings.npy"), rawMatrix(header, tc.payload), 0644); err != nil {
				t.Fatal(err)
			}

			if _, _, err := st.Load(); !errors.Is(err, domain.ErrIndexCorrupt) {
				t.Errorf("expected ErrIndexCorrupt, got %v", err)
			}
		})
	}
}

func TestReadMatrixAcceptsExactPayload(t *testing.T) {
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 2), }"
	data := rawMatrix(header, float32Payload(1, 2, 3, 4))

	rows, err := readMatrix(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][1] != 4 {
		t.Errorf("unexpected matrix %v", rows)
	}
}
