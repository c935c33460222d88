package storage

import (
	"fmt"
	"time"

	"inbox/internal/models"

	"go.etcd.io/bbolt"
)

var bucketLocal = []byte("local_storage")

// DefaultLockTimeout bounds the wait for another process holding the file.
const DefaultLockTimeout = 1 * time.Second

// BboltCache is a file-backed key/value cache holding whole values under
// fixed keys. Writers never merge.
//
// The database file is opened only for the duration of each operation, so
// several processes can share it. The last Save wins.
type BboltCache struct {
	path    string
	timeout time.Duration
}

func NewBboltCache(path string) (*BboltCache, error) {
	s := &BboltCache{path: path, timeout: DefaultLockTimeout}

	err := s.update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLocal)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return s, nil
}

// Close is a no-op: no handle outlives an operation.
func (s *BboltCache) Close() error {
	return nil
}

func (s *BboltCache) open() (*bbolt.DB, error) {
	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}
	return db, nil
}

func (s *BboltCache) view(fn func(tx *bbolt.Tx) error) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.View(fn)
}

func (s *BboltCache) update(fn func(tx *bbolt.Tx) error) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.Update(fn); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

// Load returns a copy of the value stored under key.
func (s *BboltCache) Load(key string) ([]byte, error) {
	var data []byte
	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return models.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return models.ErrNotFound
		}
		// v is only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Save overwrites the value stored under key.
func (s *BboltCache) Save(key string, data []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketLocal)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BboltCache) Delete(key string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
