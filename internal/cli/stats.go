package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"paperrag/internal/adapter/retriever"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what is in the index",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	r, err := retriever.FromStore(newFileStore(cfg))
	if err != nil {
		return err
	}

	fmt.Printf("Index:      %s\n", cfg.Paths.IndexDir)
	fmt.Printf("Chunks:     %d\n", r.Len())
	fmt.Printf("Dimension:  %d\n", r.Dimension())

	manifest, closeManifest, err := openManifestIfExists(cfg)
	if err != nil {
		return err
	}
	defer closeManifest()
	if manifest == nil {
		fmt.Println("\nNo manifest recorded for this index.")
		return nil
	}

	m, ok, err := manifest.Manifest()
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Model:      %s\n", m.EmbeddingModel)
		fmt.Printf("Chunking:   size %d, overlap %d\n", m.ChunkSize, m.ChunkOverlap)
		fmt.Printf("Built:      %s\n", m.BuiltAt.Local().Format(time.RFC1123))
		if m.EmbeddingModel != cfg.Embedding.Model {
			fmt.Printf("\nWarning: configured embedding model is %s; rebuild the index before querying.\n", cfg.Embedding.Model)
		}
	}

	sources, err := manifest.Sources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	fmt.Printf("\nSources (%d):\n", len(sources))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FILE\tPAGES\tCHUNKS\tURL")
	for _, s := range sources {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%s\n", s.SourceFile, s.Pages, s.Chunks, s.URL)
	}
	return w.Flush()
}
