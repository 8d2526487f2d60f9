package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"paperrag/internal/domain"
)

// InstallSample copies the bundled sample PDFs and their metadata into
// papersDir. With clean set, existing PDFs and metadata are removed first.
// It returns the number of PDFs copied.
func InstallSample(sampleDir, papersDir string, clean bool) (int, error) {
	info, err := os.Stat(sampleDir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: sample dataset folder not found: %s", domain.ErrConfig, sampleDir)
	}
	if err := os.MkdirAll(papersDir, 0755); err != nil {
		return 0, err
	}

	if clean {
		existing, err := filepath.Glob(filepath.Join(papersDir, "*.pdf"))
		if err != nil {
			return 0, err
		}
		for _, path := range existing {
			if err := os.Remove(path); err != nil {
				return 0, err
			}
		}
		if err := os.Remove(filepath.Join(papersDir, metadataFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		log.Debug().Int("removed", len(existing)).Msg("cleaned papers directory")
	}

	pdfs, err := filepath.Glob(filepath.Join(sampleDir, "*.pdf"))
	if err != nil {
		return 0, err
	}
	for _, src := range pdfs {
		if err := copyFile(src, filepath.Join(papersDir, filepath.Base(src))); err != nil {
			return 0, err
		}
	}

	meta := filepath.Join(sampleDir, metadataFile)
	if _, err := os.Stat(meta); err == nil {
		if err := copyFile(meta, filepath.Join(papersDir, metadataFile)); err != nil {
			return 0, err
		}
	}
	return len(pdfs), nil
}

const metadataFile = "metadata.json"

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
