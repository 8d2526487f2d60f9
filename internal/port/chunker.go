package port

// Chunker splits normalized page text into overlapping windows.
type Chunker interface {
	Split(text string) ([]string, error)
}
