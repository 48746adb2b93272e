package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/quillsearch/quill/pkg/errors"
)

var docsBucket = []byte("docs")

// DocRef locates a document: the segment holding it and its local document
// number within that segment.
type DocRef struct {
	Segment string `json:"segment"`
	DocNum  uint32 `json:"docnum"`
}

// DocStore is the index-level catalog mapping external document IDs to their
// current location, persisted in a bbolt database. It is updated on commit
// and merge, and consulted when deleting by external ID.
type DocStore struct {
	db *bolt.DB
}

func OpenDocStore(path string) (*DocStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening doc store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(docsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing doc store: %w", err)
	}
	return &DocStore{db: db}, nil
}

// Put records the location of an external document ID, replacing any previous
// entry.
func (s *DocStore) Put(id string, ref DocRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encoding doc ref: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).Put([]byte(id), data)
	})
}

// PutBatch records many locations in one transaction.
func (s *DocStore) PutBatch(refs map[string]DocRef) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(docsBucket)
		for id, ref := range refs {
			data, err := json.Marshal(ref)
			if err != nil {
				return fmt.Errorf("encoding doc ref for %q: %w", id, err)
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get resolves an external document ID, returning ErrNotFound when absent.
func (s *DocStore) Get(id string) (DocRef, error) {
	var ref DocRef
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(docsBucket).Get([]byte(id))
		if data == nil {
			return errors.Newf(errors.ErrNotFound, "document %q is not in the catalog", id)
		}
		return json.Unmarshal(data, &ref)
	})
	return ref, err
}

// Delete removes an external document ID from the catalog.
func (s *DocStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).Delete([]byte(id))
	})
}

// Count returns the number of cataloged documents.
func (s *DocStore) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(docsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// ForEach visits every cataloged document.
func (s *DocStore) ForEach(fn func(id string, ref DocRef) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).ForEach(func(k, v []byte) error {
			var ref DocRef
			if err := json.Unmarshal(v, &ref); err != nil {
				return fmt.Errorf("decoding doc ref for %q: %w", k, err)
			}
			return fn(string(k), ref)
		})
	})
}

func (s *DocStore) Close() error {
	return s.db.Close()
}
