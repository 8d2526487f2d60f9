package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"paperrag/config"
	"paperrag/internal/adapter/retriever"
	"paperrag/internal/domain"
	"paperrag/internal/port"
	"paperrag/internal/usecase"
)

var (
	queryText         string
	queryTopK         int
	queryJSON         bool
	queryRetrieveOnly bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer a question from the indexed papers",
	Long: `Embed the question, retrieve the most similar chunks and ask the language
model to answer from them, citing sources as [source_file p.X].

Examples:
  paperrag query -q "What are the key contributions of transformer-based models?"
  paperrag query -q "diffusion guidance" -k 5 --retrieve-only --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to ask (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryRetrieveOnly, "retrieve-only", false, "skip answer generation and list the retrieved chunks")
	queryCmd.MarkFlagRequired("query")
}

// SourceResult is one cited chunk in CLI output.
type SourceResult struct {
	Rank       int     `json:"rank"`
	SourceFile string  `json:"source_file"`
	Page       int     `json:"page"`
	ChunkID    int     `json:"chunk_id"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
	URL        string  `json:"url,omitempty"`
	LocalPath  string  `json:"local_path,omitempty"`
}

type QueryResult struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer,omitempty"`
	Sources  []SourceResult `json:"sources"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	} else if queryTopK < 0 {
		return fmt.Errorf("%w: --top-k must be positive", domain.ErrConfig)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	manifest, closeManifest, err := openManifestIfExists(cfg)
	if err != nil {
		return err
	}
	defer closeManifest()

	var composer *usecase.AnswerComposer
	if !queryRetrieveOnly {
		chat, err := newChat(cfg)
		if err != nil {
			return err
		}
		composer = usecase.NewAnswerComposer(chat)
	}

	retrieveUC := usecase.NewRetrieveUseCase(retriever.Loader(newFileStore(cfg)), manifest, embedder, composer)

	result := QueryResult{Question: queryText}
	var docs []domain.ScoredChunk
	if queryRetrieveOnly {
		docs, err = retrieveUC.Retrieve(cmd.Context(), queryText, topK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	} else {
		answer, err := retrieveUC.Ask(cmd.Context(), queryText, topK)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		result.Answer = answer.Text
		docs = answer.Sources
	}
	result.Sources = sourceResults(cfg, manifest, docs)

	if queryJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if result.Answer != "" {
		fmt.Println("Answer")
		fmt.Println("------")
		fmt.Println(result.Answer)
		fmt.Println()
	}

	if len(result.Sources) == 0 {
		fmt.Println("No sources returned.")
		return nil
	}
	fmt.Println("Top Sources")
	fmt.Println("-----------")
	for _, s := range result.Sources {
		fmt.Printf("%d. %s (p.%d) score %.3f\n", s.Rank, s.SourceFile, s.Page, s.Score)
		if s.URL != "" {
			fmt.Printf("   arXiv: %s\n", s.URL)
		}
		if s.LocalPath != "" {
			fmt.Printf("   Local: %s\n", s.LocalPath)
		}
		fmt.Printf("   %s\n\n", s.Snippet)
	}
	return nil
}

// sourceResults decorates retrieved chunks with snippets and links.
// Links come from the manifest, falling back to the papers' metadata for
// indexes built before the manifest existed.
func sourceResults(cfg *config.Config, manifest port.ManifestStore, docs []domain.ScoredChunk) []SourceResult {
	var fallback map[string]string
	results := make([]SourceResult, len(docs))
	for i, d := range docs {
		r := SourceResult{
			Rank:       i + 1,
			SourceFile: d.Chunk.SourceFile,
			Page:       d.Chunk.Page,
			ChunkID:    d.Chunk.ChunkID,
			Score:      d.Score,
			Snippet:    Snippet(d.Chunk.Text, snippetLen),
		}

		if manifest != nil {
			if rec, found, err := manifest.Source(d.Chunk.SourceFile); err == nil && found {
				r.URL = rec.URL
			}
		}
		if r.URL == "" {
			if fallback == nil {
				fallback = usecase.SourceLinks(usecase.ReadMetadata(cfg.MetadataPath()))
			}
			r.URL = fallback[d.Chunk.SourceFile]
		}

		path := filepath.Join(cfg.Paths.PapersDir, d.Chunk.SourceFile)
		if _, err := os.Stat(path); err == nil {
			r.LocalPath = path
		}
		results[i] = r
	}
	return results
}
