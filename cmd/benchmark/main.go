package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"paperrag/config"
	"paperrag/internal/adapter/embedding"
	"paperrag/internal/adapter/retriever"
	"paperrag/internal/adapter/store"
	"paperrag/internal/port"
	"paperrag/internal/usecase"
)

func main() {
	rootDir := flag.String("dir", ".", "Project root containing the index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index shape (chunks, embedding model)")
		fmt.Println("  2. Similarity of the top matches for the query")
		fmt.Println("  3. Query latency")
		os.Exit(1)
	}

	_ = godotenv.Load(filepath.Join(*rootDir, ".env"))
	cfg, err := config.LoadFromDir(*rootDir)
	if err == nil {
		err = cfg.ApplyEnv(os.LookupEnv)
	}
	if err == nil {
		err = cfg.RequireAPIKey()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Resolve(*rootDir)

	st := store.NewFileStore(cfg.Paths.IndexDir, cfg.ChunksPath(), cfg.EmbeddingsPath())
	embedder := embedding.NewOpenAIEmbedder(cfg.API.Key, cfg.API.BaseURL, cfg.Embedding.Model,
		cfg.Embedding.BatchSize, time.Duration(cfg.API.TimeoutSecs)*time.Second)

	var manifest *store.ManifestStore
	if _, err := os.Stat(cfg.ManifestPath()); err == nil {
		manifest, err = store.OpenManifestReadOnly(cfg.ManifestPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening manifest: %v\n", err)
			os.Exit(1)
		}
		defer manifest.Close()
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Model: %s\n", cfg.Embedding.Model)
	if manifest != nil {
		if m, ok, err := manifest.Manifest(); err == nil && ok {
			fmt.Printf("Chunks indexed: %d from %d papers\n", m.ChunkCount, m.SourceCount)
		}
	}
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	uc := usecase.NewRetrieveUseCase(retriever.Loader(st), nilIfAbsent(manifest), embedder, nil)
	started := time.Now()
	results, err := uc.Retrieve(context.Background(), *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(started)

	if len(results) == 0 {
		fmt.Println("Index is empty.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := strings.Join(strings.Fields(r.Chunk.Text), " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s p.%d #%d\n", i+1, rating, similarity, r.Chunk.SourceFile, r.Chunk.Page, r.Chunk.ChunkID)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Latency:            %s\n", elapsed.Round(time.Millisecond))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - try a larger chunk size or re-index")
	}
}

// nilIfAbsent keeps a missing manifest a nil interface.
func nilIfAbsent(m *store.ManifestStore) port.ManifestStore {
	if m == nil {
		return nil
	}
	return m
}
