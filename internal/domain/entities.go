package domain

import "time"

// Chunk is one retrievable window of page text. Its JSON form is one line
// of the chunk records file.
type Chunk struct {
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
	ChunkID    int    `json:"chunk_id"`
	Text       string `json:"text"`
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Page is the extracted text of one 1-based page of a source document.
type Page struct {
	Number int
	Text   string
}

// Answer is the composed response to a question together with the chunks
// that were placed in the generation context.
type Answer struct {
	Text    string
	Sources []ScoredChunk
}

// Paper is the catalog record of an acquired document.
type Paper struct {
	PaperID   string     `json:"paper_id"`
	Title     string     `json:"title"`
	Authors   []string   `json:"authors"`
	Published *time.Time `json:"published"`
	PDFFile   string     `json:"pdf_file"`
	Summary   string     `json:"summary"`
	ArxivURL  string     `json:"arxiv_url"`
}

// Manifest describes the build that produced the persisted index.
type Manifest struct {
	SchemaVersion  int       `json:"schema_version"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	ChunkCount     int       `json:"chunk_count"`
	SourceCount    int       `json:"source_count"`
	BuiltAt        time.Time `json:"built_at"`
}

// SourceRecord summarizes one indexed source document.
type SourceRecord struct {
	SourceFile string `json:"source_file"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	URL        string `json:"url,omitempty"`
}
