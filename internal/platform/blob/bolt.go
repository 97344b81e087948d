package blob

import (
	"bytes"
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var contentBucket = []byte("content")

// BoltStore keeps all content in one bbolt bucket keyed by logical path.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(contentBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create content bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) ReadText(_ context.Context, key string) (string, error) {
	var out string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(contentBucket).Get([]byte(key)); v != nil {
			out = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("BoltStore.ReadText %s: %w", key, err)
	}
	return out, nil
}

func (s *BoltStore) WriteText(_ context.Context, key, text string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(contentBucket).Put([]byte(key), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("BoltStore.WriteText %s: %w", key, err)
	}
	return nil
}

func (s *BoltStore) DeleteTree(_ context.Context, prefix string) error {
	p := []byte(treePrefix(prefix))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(contentBucket)

		// Collect first; deleting under a live cursor skips entries.
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("BoltStore.DeleteTree %s: %w", prefix, err)
	}
	return nil
}
