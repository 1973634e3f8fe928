package crate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRecipients is returned when a sensitive entity resolves to an
	// empty recipient set at save time. The save is aborted rather than
	// falling back to plaintext.
	ErrNoRecipients = errors.New("no recipients for sensitive entity")

	// ErrNoCodec is returned when a crate holding sensitive entities is
	// saved, or an encrypted section is loaded, without a codec configured.
	ErrNoCodec = errors.New("no encryption codec configured")

	// ErrNoValidKeys is returned when none of an entity's recipients carries
	// a usable public key fingerprint.
	ErrNoValidKeys = errors.New("no recipient has a valid public key")

	// ErrEntityNotFound is returned when an operation names an identifier
	// the crate does not hold.
	ErrEntityNotFound = errors.New("entity not found in crate")

	// ErrNoMetadataFile is returned when a crate directory contains no
	// metadata file under a recognized name.
	ErrNoMetadataFile = errors.New("no metadata file found")

	// ErrNoDescriptor is returned when a metadata document contains no
	// metadata file descriptor entity.
	ErrNoDescriptor = errors.New("metadata file descriptor not found")

	// ErrInvalidDescriptor is returned when a descriptor entity or its root
	// data entity violates the metadata structure rules.
	ErrInvalidDescriptor = errors.New("invalid metadata descriptor")

	// ErrInvalidMetadata is returned when a metadata document is not a JSON
	// object with @context and @graph members.
	ErrInvalidMetadata = errors.New("invalid crate metadata")
)

// MissingKeysError is returned when an entity's recipients relation
// references keyholders that cannot supply a fingerprint. Encryption aborts
// rather than silently narrowing the audience.
type MissingKeysError struct {
	Missing []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("at least one recipient lacks a valid key: %s", strings.Join(e.Missing, ", "))
}
