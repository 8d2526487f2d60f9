package cli

import "strings"

const snippetLen = 450

// Snippet collapses whitespace and cuts text to max runes, marking the cut.
func Snippet(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
