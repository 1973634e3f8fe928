// Package memory provides a thread-safe in-memory implementation of keyring.Store.
package memory

import (
	"sync"

	"github.com/jmelville/sealcrate/keyring"
)

// Store is a thread-safe in-memory implementation of keyring.Store.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu   sync.RWMutex
	data map[string]*keyring.Record
}

var _ keyring.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]*keyring.Record)}
}

func cloneRecord(rec *keyring.Record) *keyring.Record {
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}

func (s *Store) Put(fingerprint string, rec *keyring.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fingerprint] = cloneRecord(rec)
	return nil
}

func (s *Store) Get(fingerprint string) (*keyring.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[fingerprint]
	if !ok {
		return nil, keyring.ErrKeyNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fps := make([]string, 0, len(s.data))
	for fp := range s.data {
		fps = append(fps, fp)
	}
	return fps, nil
}

func (s *Store) Delete(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[fingerprint]; !ok {
		return keyring.ErrKeyNotFound
	}
	delete(s.data, fingerprint)
	return nil
}
