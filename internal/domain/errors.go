package domain

import "errors"

var (
	// ErrConfig reports a missing credential or an invalid setting.
	ErrConfig = errors.New("configuration error")

	// ErrIndexMissing reports that the chunk records or the embedding
	// matrix is absent. The index has to be built first.
	ErrIndexMissing = errors.New("index missing")

	// ErrIndexCorrupt reports a chunk/embedding count or dimension mismatch.
	// The index has to be rebuilt.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrIngestEmpty reports a build that produced zero chunks.
	ErrIngestEmpty = errors.New("no chunks produced")

	// ErrCollaborator reports a failed embedding or generation call.
	ErrCollaborator = errors.New("collaborator call failed")
)
