// Package boltstore is a bbolt-backed persist.Store. The document lives
// under a single key of one bucket.
package boltstore

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/yiblet/cliphist/internal/persist"
)

const (
	// FileName is the default database file name inside the data directory.
	FileName = "cliphist.bolt"

	clipboardBucket = "clipboard"
)

var _ persist.Store = (*BoltStore)(nil)

// BoltStore stores the document in a bbolt database.
type BoltStore struct {
	db  *bbolt.DB
	key []byte
}

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(clipboardBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db, key: []byte(persist.RecordName)}, nil
}

// Path returns the database location.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Load returns the stored document.
func (s *BoltStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(clipboardBucket)).Get(s.key)
		if v == nil {
			return persist.ErrNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the stored document.
func (s *BoltStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(clipboardBucket)).Put(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
