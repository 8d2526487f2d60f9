package port

import "paperrag/internal/domain"

// ManifestStore records build parameters and per-source statistics.
type ManifestStore interface {
	Write(m domain.Manifest, sources []domain.SourceRecord) error
	Manifest() (domain.Manifest, bool, error)
	Source(sourceFile string) (domain.SourceRecord, bool, error)
	Sources() ([]domain.SourceRecord, error)
	Close() error
}
