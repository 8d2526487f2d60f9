package cli

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"paperrag/internal/adapter/arxiv"
	"paperrag/internal/usecase"
)

var (
	fetchQuery      string
	fetchMaxResults int
	fetchOutDir     string
	fetchBaseURL    string
	fetchQuiet      bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download papers from arXiv",
	Long: `Search arXiv for the newest submissions matching a query and download
their PDFs into the papers directory. metadata.json is written alongside so
that answers can link back to arXiv. Failed downloads are reported and skipped.

Examples:
  paperrag fetch --max-results 50
  paperrag fetch --query "cat:cs.CL AND ti:retrieval" --max-results 20`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchQuery, "query", arxiv.DefaultQuery, "arXiv search query")
	fetchCmd.Flags().IntVar(&fetchMaxResults, "max-results", 120, "number of papers to download")
	fetchCmd.Flags().StringVar(&fetchOutDir, "out-dir", "", "folder for downloaded PDFs (default is the papers directory)")
	fetchCmd.Flags().StringVar(&fetchBaseURL, "api-url", arxiv.DefaultBaseURL, "arXiv API endpoint")
	fetchCmd.Flags().BoolVar(&fetchQuiet, "quiet", false, "hide progress bar")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	outDir := cfg.Paths.PapersDir
	metadataPath := cfg.MetadataPath()
	if fetchOutDir != "" {
		outDir = fetchOutDir
		metadataPath = filepath.Join(outDir, "metadata.json")
	}

	fetchUC := usecase.NewFetchUseCase(arxiv.NewClient(fetchBaseURL, apiTimeout(cfg)))

	var bar *progressbar.ProgressBar
	result, err := fetchUC.Fetch(cmd.Context(), usecase.FetchOptions{
		Query:        fetchQuery,
		MaxResults:   fetchMaxResults,
		OutDir:       outDir,
		MetadataPath: metadataPath,
		OnDownloaded: func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total, "Downloading PDFs", fetchQuiet)
			}
			bar.Set(done)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %d papers into %s\n", len(result.Papers), outDir)
	if len(result.Failures) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, f := range result.Failures {
			fmt.Printf("  - %s: %v\n", f.PaperID, f.Err)
		}
	}
	fmt.Printf("Download complete. Metadata saved to: %s\n", metadataPath)
	return nil
}
