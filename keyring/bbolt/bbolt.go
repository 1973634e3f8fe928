// Package bbolt provides a BBolt-backed keyring store.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmelville/sealcrate/keyring"
)

var keysBucket = []byte("keys")

// Store implements keyring.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ keyring.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new
// Store. The file is created with mode 0600 since it may hold private keys.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(fingerprint string, rec *keyring.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(keysBucket)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(fingerprint), data)
	})
}

func (s *Store) Get(fingerprint string) (*keyring.Record, error) {
	var rec keyring.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		if b == nil {
			return fmt.Errorf("%s: %w", fingerprint, keyring.ErrKeyNotFound)
		}
		data := b.Get([]byte(fingerprint))
		if data == nil {
			return fmt.Errorf("%s: %w", fingerprint, keyring.ErrKeyNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) List() ([]string, error) {
	var fps []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			fps = append(fps, string(k))
			return nil
		})
	})
	return fps, err
}

func (s *Store) Delete(fingerprint string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(keysBucket)
		if b == nil || b.Get([]byte(fingerprint)) == nil {
			return fmt.Errorf("%s: %w", fingerprint, keyring.ErrKeyNotFound)
		}
		return b.Delete([]byte(fingerprint))
	})
}
