package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"paperrag/internal/usecase"
)

var sampleClean bool

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Install the bundled sample papers",
	Long: `Copy the sample PDFs (and their metadata.json) into the papers directory
for a quick demo without downloading anything.

Examples:
  paperrag sample --clean && paperrag index --reset`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().BoolVar(&sampleClean, "clean", false, "remove existing PDFs and metadata from the papers directory first")
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	copied, err := usecase.InstallSample(cfg.Paths.SampleDir, cfg.Paths.PapersDir, sampleClean)
	if err != nil {
		return err
	}
	fmt.Printf("Copied %d sample PDFs into %s\n", copied, cfg.Paths.PapersDir)
	return nil
}
