package chunker

import (
	"fmt"
	"strings"

	"paperrag/internal/domain"
)

// WindowChunker slides a fixed-size character window across normalized text.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{
		size:    size,
		overlap: overlap,
	}, nil
}

func (c *WindowChunker) Split(text string) ([]string, error) {
	return Split(text, c.size, c.overlap)
}

// Split normalizes text and cuts it into windows of at most size runes,
// each starting size-overlap runes after the previous one. Windows that are
// empty after trimming are dropped, and no window is emitted once one has
// reached the end of the text.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Normalize drops invalid encoding artifacts and collapses all whitespace
// runs into single spaces.
func Normalize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Map(func(r rune) rune {
		if r == 0 || r == '\uFFFD' {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrConfig, overlap, size)
	}
	return nil
}
