package storage

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// BlobStore is a content-addressed, deduplicated payload store. Put is
// idempotent: storing the same bytes twice increments RefCount instead of
// writing a second copy. An in-process LRU fronts the bbolt bucket so
// repeated reads of hot blobs (the current content of a frequently queried
// node, say) don't round-trip through bbolt's page cache.
type BlobStore struct {
	db    *bolt.DB
	cache *lru.Cache
}

func newBlobStore(db *bolt.DB, cacheSize int) (*BlobStore, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "storage.newBlobStore", err, "invalid blob cache size")
	}
	return &BlobStore{db: db, cache: cache}, nil
}

// Put stores bytes under their content hash, incrementing RefCount if the
// blob already exists, and returns the hash. Safe for concurrent callers
// across the same transaction-less path; the caller holding a per-node
// commit lock upstream (pkg/txn) supplies the only serialization this
// package needs.
func (s *BlobStore) Put(data []byte) (types.ContentHash, error) {
	hash := HashBytes(data)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		existing := b.Get([]byte(hash))

		var blob types.ContentBlob
		if existing != nil {
			if err := json.Unmarshal(existing, &blob); err != nil {
				return err
			}
			blob.RefCount++
		} else {
			blob = types.ContentBlob{
				Hash:      hash,
				Bytes:     data,
				CreatedAt: time.Now(),
				RefCount:  1,
			}
		}

		encoded, err := json.Marshal(blob)
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), encoded)
	})
	if err != nil {
		return "", errs.Storage("storage.BlobStore.Put", err)
	}

	s.cache.Add(hash, data)
	return hash, nil
}

// Get returns the bytes for hash, serving from the LRU when possible.
func (s *BlobStore) Get(hash types.ContentHash) ([]byte, error) {
	if cached, ok := s.cache.Get(hash); ok {
		metrics.BlobCacheHitsTotal.WithLabelValues("hit").Inc()
		return cached.([]byte), nil
	}
	metrics.BlobCacheHitsTotal.WithLabelValues("miss").Inc()

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		raw := b.Get([]byte(hash))
		if raw == nil {
			return errs.NotFound("storage.BlobStore.Get", "blob", string(hash))
		}
		var blob types.ContentBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return err
		}
		data = blob.Bytes
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Add(hash, data)
	return data, nil
}

// Release decrements a blob's reference count and deletes it once the
// count reaches zero. No code in this module calls it, so stored blobs are
// not reclaimed.
func (s *BlobStore) Release(hash types.ContentHash) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		raw := b.Get([]byte(hash))
		if raw == nil {
			return nil
		}
		var blob types.ContentBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return err
		}
		blob.RefCount--
		if blob.RefCount <= 0 {
			return b.Delete([]byte(hash))
		}
		encoded, err := json.Marshal(blob)
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), encoded)
	})
	if err != nil {
		return errs.Storage("storage.BlobStore.Release", err)
	}
	s.cache.Remove(hash)
	return nil
}
