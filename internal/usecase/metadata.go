package usecase

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"paperrag/internal/domain"
)

// ReadMetadata loads the paper catalog written by fetch. A missing or
// unreadable file yields an empty catalog.
func ReadMetadata(path string) []domain.Paper {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("cannot read paper metadata")
		}
		return nil
	}
	var papers []domain.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ignoring malformed paper metadata")
		return nil
	}
	return papers
}

// WriteMetadata replaces the catalog file.
func WriteMetadata(path string, papers []domain.Paper) error {
	if papers == nil {
		papers = []domain.Paper{}
	}
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// SourceLinks maps local PDF names to their arXiv pages.
func SourceLinks(papers []domain.Paper) map[string]string {
	links := make(map[string]string, len(papers))
	for _, p := range papers {
		if p.PDFFile != "" && p.ArxivURL != "" {
			links[p.PDFFile] = p.ArxivURL
		}
	}
	return links
}
