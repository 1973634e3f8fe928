package crate

import (
	"fmt"

	"github.com/jmelville/sealcrate/keyring"
)

// Keyholder entity types and properties.
const (
	TypeContactPoint = "ContactPoint"
	TypeKeyholder    = "EncryptionKeyholder"
)

// hkpLookupStub is the HKP index lookup path appended to a keyserver base
// URL to form a keyholder's lookup URL.
const hkpLookupStub = "/pks/lookup?op=index&exact=true&search="

// Keyholder is a context entity describing someone who holds an encryption
// key: a ContactPoint carrying the fingerprint a sensitive entity's
// recipients relation resolves to. Add it to a crate like any other entity.
type Keyholder struct {
	Entity
}

type keyholderConfig struct {
	id        string
	keyserver string
}

// KeyholderOption customizes keyholder construction.
type KeyholderOption func(*keyholderConfig)

// WithKeyholderID overrides the generated identifier.
func WithKeyholderID(id string) KeyholderOption {
	return func(c *keyholderConfig) { c.id = id }
}

// WithKeyserver records the keyserver the key can be fetched from. The
// keyholder's identifier and url become the server's HKP lookup URL for the
// fingerprint. No network fetch is performed.
func WithKeyserver(server string) KeyholderOption {
	return func(c *keyholderConfig) { c.keyserver = server }
}

// NewKeyholder builds a keyholder entity from a key's public information.
// Name and email lists are derived from the key's UIDs; the identifier
// defaults to the fingerprint as a local reference ("#" + fingerprint), or
// to the keyserver lookup URL when a keyserver is set.
func NewKeyholder(info keyring.PublicKeyInfo, opts ...KeyholderOption) (*Keyholder, error) {
	cfg := keyholderConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if info.Fingerprint == "" && cfg.id == "" {
		return nil, fmt.Errorf("keyholder requires a fingerprint or an explicit identifier")
	}

	id := cfg.id
	lookupURL := ""
	if cfg.keyserver != "" {
		lookupURL = cfg.keyserver + hkpLookupStub + info.Fingerprint
	}
	if id == "" {
		if lookupURL != "" {
			id = lookupURL
		} else {
			id = "#" + info.Fingerprint
		}
	}

	names := make([]string, 0, len(info.UIDs))
	emails := make([]string, 0, len(info.UIDs))
	for _, uid := range info.UIDs {
		name, email := keyring.SplitUID(uid)
		names = append(names, name)
		emails = append(emails, email)
	}

	props := map[string]any{
		"@type": []any{TypeContactPoint, TypeKeyholder},
	}
	if info.Fingerprint != "" {
		props[PropPubkeyFingerprints] = info.Fingerprint
	}
	if len(names) > 0 {
		props["name"] = names
		props["email"] = emails
	}
	if cfg.keyserver != "" {
		props["keyserver"] = cfg.keyserver
		props["url"] = lookupURL
	}

	return &Keyholder{Entity: *NewEntity(id, props)}, nil
}

// Fingerprint returns the keyholder's stored fingerprint, or "" when the
// entity does not carry one.
func (k *Keyholder) Fingerprint() string {
	fps := stringValues(k.Get(PropPubkeyFingerprints))
	if len(fps) == 0 {
		return ""
	}
	return fps[0]
}
