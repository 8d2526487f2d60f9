package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"paperrag/internal/domain"
)

// CurrentSchemaVersion is the manifest schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	bucketMeta    = []byte("meta")
	bucketSources = []byte("sources")
	keyManifest   = []byte("manifest")
)

// ManifestStore records how the index was built in a small bbolt database
// next to the chunk and embedding files.
type ManifestStore struct {
	db *bbolt.DB
}

func OpenManifest(path string) (*ManifestStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketSources} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ManifestStore{db: db}, nil
}

// Write replaces the manifest and all source records.
func (s *ManifestStore) Write(m domain.Manifest, sources []domain.SourceRecord) error {
	m.SchemaVersion = CurrentSchemaVersion
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put(keyManifest, data); err != nil {
			return err
		}

		if err := tx.DeleteBucket(bucketSources); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketSources)
		if err != nil {
			return err
		}
		for _, src := range sources {
			data, err := json.Marshal(src)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(src.SourceFile), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Manifest returns the stored manifest. ok is false when no build has been
// recorded yet.
func (s *ManifestStore) Manifest() (m domain.Manifest, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyManifest)
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return m, false, err
	}
	if ok && m.SchemaVersion > CurrentSchemaVersion {
		return m, false, fmt.Errorf("%w: manifest created by newer version (v%d > v%d), rebuild required",
			domain.ErrIndexCorrupt, m.SchemaVersion, CurrentSchemaVersion)
	}
	return m, ok, nil
}

func (s *ManifestStore) Source(sourceFile string) (domain.SourceRecord, bool, error) {
	var rec domain.SourceRecord
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSources).Get([]byte(sourceFile))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// Sources lists all source records ordered by file name.
func (s *ManifestStore) Sources() ([]domain.SourceRecord, error) {
	var sources []domain.SourceRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSources).ForEach(func(k, v []byte) error {
			var rec domain.SourceRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			sources = append(sources, rec)
			return nil
		})
	})
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceFile < sources[j].SourceFile
	})
	return sources, err
}

func (s *ManifestStore) Close() error {
	return s.db.Close()
}

// OpenManifestReadOnly opens an existing manifest without taking the
// writer lock. It fails if the file does not exist.
func OpenManifestReadOnly(path string) (*ManifestStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest db: %w", err)
	}
	err = db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketMeta) == nil || tx.Bucket(bucketSources) == nil {
			return fmt.Errorf("%w: manifest is missing buckets", domain.ErrIndexCorrupt)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &ManifestStore{db: db}, nil
}
