package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"paperrag/internal/adapter/chunker"
	"paperrag/internal/adapter/fs"
	"paperrag/internal/adapter/pdf"
	"paperrag/internal/adapter/store"
	"paperrag/internal/port"
	"paperrag/internal/usecase"
)

var (
	indexReset     bool
	indexMaxPapers int
	indexQuiet     bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the paper index",
	Long: `Extract text from every paper in the papers directory, split it into
overlapping chunks, embed the chunks and store them in the index directory.
The whole index is rebuilt on every run.

Examples:
  paperrag index --reset
  paperrag index --max-papers 10`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "delete the existing index before rebuilding")
	indexCmd.Flags().IntVar(&indexMaxPapers, "max-papers", 0, "only index the first N papers (0 = all)")
	indexCmd.Flags().BoolVar(&indexQuiet, "quiet", false, "hide progress bars")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if indexMaxPapers < 0 {
		return fmt.Errorf("--max-papers must not be negative")
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	chk, err := chunker.NewWindowChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return err
	}

	indexUC := usecase.NewIndexUseCase(
		newFileStore(cfg),
		func() (port.ManifestStore, error) { return store.OpenManifest(cfg.ManifestPath()) },
		fs.NewWalker(cfg.Index.Includes, nil),
		pdf.NewReader(),
		chk,
		embedder,
	)

	fmt.Printf("Scanning %s...\n", cfg.Paths.PapersDir)

	opts := usecase.IndexOptions{
		PapersDir:    cfg.Paths.PapersDir,
		MetadataPath: cfg.MetadataPath(),
		Reset:        indexReset,
		MaxPapers:    indexMaxPapers,
		BatchSize:    cfg.Embedding.BatchSize,
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
	}

	var chunkBar, embedBar *progressbar.ProgressBar
	opts.OnChunked = func(done, total int, source string) {
		if chunkBar == nil {
			chunkBar = newProgressBar(total, "Reading papers", indexQuiet)
		}
		chunkBar.Set(done)
	}
	var embedStart time.Time
	opts.OnEmbedded = func(done, total int) {
		if embedBar == nil {
			embedStart = time.Now()
			embedBar = newProgressBar(total, "Embedding", indexQuiet)
		}
		embedBar.Set(done)
		if elapsed := time.Since(embedStart); done > 0 && done < total {
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				embedBar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	started := time.Now()
	result, err := indexUC.Index(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	papers := 0
	for _, src := range result.Sources {
		if src.Chunks > 0 {
			papers++
		}
	}
	log.Info().Dur("elapsed", time.Since(started)).Msg("index built")

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Papers:     %d\n", papers)
	fmt.Printf("  Chunks:     %d\n", result.Chunks)
	fmt.Printf("  Dimension:  %d\n", result.Dimension)
	fmt.Printf("\nChunks stored at:     %s\n", cfg.ChunksPath())
	fmt.Printf("Embeddings stored at: %s\n", cfg.EmbeddingsPath())
	fmt.Printf("Manifest stored at:   %s\n", cfg.ManifestPath())
	return nil
}
