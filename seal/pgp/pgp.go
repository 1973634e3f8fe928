// Package pgp implements seal.Codec with OpenPGP messages built from keys in
// a local keyring. Each encrypted block wraps one session key per recipient,
// so any single recipient can decrypt alone.
package pgp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	pgperrors "golang.org/x/crypto/openpgp/errors"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/jmelville/sealcrate/internal/util"
	"github.com/jmelville/sealcrate/keyring"
	"github.com/jmelville/sealcrate/seal"
)

const messageType = "PGP MESSAGE"

// Codec encrypts and decrypts blocks using OpenPGP keys from a keyring.
type Codec struct {
	keys       *keyring.Keyring
	passphrase *memguard.Enclave
	config     *packet.Config
}

var _ seal.Codec = (*Codec)(nil)

// Option customizes the codec.
type Option func(*Codec)

// WithPassphrase supplies the passphrase used to unlock passphrase-protected
// private keys encountered during decryption.
func WithPassphrase(enclave *memguard.Enclave) Option {
	return func(c *Codec) { c.passphrase = enclave }
}

// WithConfig overrides the OpenPGP packet configuration.
func WithConfig(cfg *packet.Config) Option {
	return func(c *Codec) { c.config = cfg }
}

// New returns a codec over the given keyring.
func New(keys *keyring.Keyring, opts ...Option) *Codec {
	c := &Codec{keys: keys}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt produces an armored PGP message readable by every listed
// fingerprint. A fingerprint without a public key in the keyring fails the
// whole call with seal.ErrUnknownRecipient.
func (c *Codec) Encrypt(ctx context.Context, plaintext []byte, fingerprints []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(fingerprints) == 0 {
		return nil, fmt.Errorf("%w: empty recipient list", seal.ErrUnknownRecipient)
	}

	recipients := make([]*openpgp.Entity, 0, len(fingerprints))
	for _, fp := range fingerprints {
		entity, err := c.keys.EntityFor(ctx, fp)
		if err != nil {
			if errors.Is(err, keyring.ErrKeyNotFound) {
				return nil, fmt.Errorf("%s: %w", fp, seal.ErrUnknownRecipient)
			}
			return nil, fmt.Errorf("loading key %s: %w", fp, err)
		}
		recipients = append(recipients, entity)
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, messageType, nil)
	if err != nil {
		return nil, fmt.Errorf("starting armor block: %w", err)
	}
	msg, err := openpgp.Encrypt(aw, recipients, nil, nil, c.config)
	if err != nil {
		return nil, fmt.Errorf("encrypting message: %w", err)
	}
	if _, err := msg.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := msg.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("closing armor block: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens an armored PGP message with whichever keyring private key
// matches it. Locked keys are tried with the configured passphrase; when no
// key works the call fails with seal.ErrNoMatchingKey.
func (c *Codec) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities, err := c.keys.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading keyring: %w", err)
	}

	block, err := armor.Decode(bytes.NewReader(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("decoding armor: %w", err)
	}
	if block.Type != messageType {
		return nil, fmt.Errorf("unexpected armor type %q", block.Type)
	}

	md, err := openpgp.ReadMessage(block.Body, entities, c.promptFunc(), c.config)
	if err != nil {
		if errors.Is(err, pgperrors.ErrKeyIncorrect) {
			return nil, seal.ErrNoMatchingKey
		}
		return nil, fmt.Errorf("reading message: %w", err)
	}
	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted body: %w", err)
	}
	return plaintext, nil
}

// promptFunc unlocks candidate keys in place with the configured passphrase.
// ReadMessage calls the prompt repeatedly as long as keys stay locked, so the
// second call reports failure instead of looping.
func (c *Codec) promptFunc() openpgp.PromptFunction {
	if c.passphrase == nil {
		return nil
	}
	prompted := false
	return func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		if prompted {
			return nil, pgperrors.ErrKeyIncorrect
		}
		prompted = true

		buf, err := c.passphrase.Open()
		if err != nil {
			return nil, fmt.Errorf("opening passphrase enclave: %w", err)
		}
		defer buf.Destroy()

		pw := []byte(util.Normalize(buf.String()))
		defer util.WipeBytes(pw)

		unlocked := false
		for _, k := range keys {
			if k.PrivateKey == nil || !k.PrivateKey.Encrypted {
				continue
			}
			if err := k.PrivateKey.Decrypt(pw); err == nil {
				unlocked = true
			}
		}
		if !unlocked {
			return nil, pgperrors.ErrKeyIncorrect
		}
		return nil, nil
	}
}
