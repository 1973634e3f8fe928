package keyring

import (
	"errors"
	"time"
)

// ErrKeyNotFound is returned when no record exists for the requested fingerprint.
var ErrKeyNotFound = errors.New("key not found in keyring")

// Store defines the interface for keyring record storage.
type Store interface {
	Put(fingerprint string, rec *Record) error
	Get(fingerprint string) (*Record, error)
	List() ([]string, error)
	Delete(fingerprint string) error
}

// Record is the stored form of a single key. Armored holds an ASCII-armored
// OpenPGP block exactly as generated or imported, so any passphrase
// protection on imported private material survives a storage round trip.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	Armored     string    `json:"armored"`
	HasPrivate  bool      `json:"has_private"`
	CreatedAt   time.Time `json:"created_at"`
}
