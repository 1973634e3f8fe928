// Package gpg implements seal.Codec by shelling out to an external gpg
// executable. It exists for crates whose recipients manage keys in a system
// GPG home rather than in a sealcrate keyring; the pgp package is the
// self-contained alternative.
package gpg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jmelville/sealcrate/seal"
)

const defaultBinary = "gpg"

// Codec encrypts and decrypts blocks by invoking a gpg binary.
type Codec struct {
	binary  string
	homeDir string
}

var _ seal.Codec = (*Codec)(nil)

// Option customizes the codec.
type Option func(*Codec)

// WithBinary sets the gpg executable to invoke. The default is "gpg" resolved
// from PATH.
func WithBinary(path string) Option {
	return func(c *Codec) { c.binary = path }
}

// WithHomeDir sets the GPG home directory passed via --homedir.
func WithHomeDir(dir string) Option {
	return func(c *Codec) { c.homeDir = dir }
}

// New returns a codec invoking the system gpg.
func New(opts ...Option) *Codec {
	c := &Codec{binary: defaultBinary}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt runs gpg --encrypt with one --recipient flag per fingerprint.
// Recipients are trusted for the invocation, matching behavior for keys the
// crate author deliberately imported. A fingerprint unknown to gpg fails the
// call with seal.ErrUnknownRecipient.
func (c *Codec) Encrypt(ctx context.Context, plaintext []byte, fingerprints []string) ([]byte, error) {
	if len(fingerprints) == 0 {
		return nil, fmt.Errorf("%w: empty recipient list", seal.ErrUnknownRecipient)
	}

	args := c.baseArgs()
	args = append(args, "--armor", "--trust-model", "always")
	for _, fp := range fingerprints {
		args = append(args, "--recipient", fp)
	}
	args = append(args, "--encrypt")

	out, stderr, err := c.run(ctx, args, plaintext)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("gpg binary %q unavailable: %w", c.binary, err)
		}
		if strings.Contains(stderr, "No public key") {
			return nil, fmt.Errorf("%s: %w", stderr, seal.ErrUnknownRecipient)
		}
		return nil, fmt.Errorf("gpg encrypt: %v: %s", err, stderr)
	}
	return out, nil
}

// Decrypt runs gpg --decrypt. Every decryption failure maps to
// seal.ErrNoMatchingKey; gpg's exit status does not distinguish a missing
// key from a corrupt message without parsing status output.
func (c *Codec) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := c.baseArgs()
	args = append(args, "--decrypt")

	out, stderr, err := c.run(ctx, args, ciphertext)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("gpg binary %q unavailable: %w", c.binary, err)
		}
		return nil, fmt.Errorf("%s: %w", stderr, seal.ErrNoMatchingKey)
	}
	return out, nil
}

func (c *Codec) baseArgs() []string {
	args := []string{"--batch", "--yes", "--quiet"}
	if c.homeDir != "" {
		args = append(args, "--homedir", c.homeDir)
	}
	return args
}

func (c *Codec) run(ctx context.Context, args []string, stdin []byte) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	err := cmd.Run()
	return out.Bytes(), strings.TrimSpace(errBuf.String()), err
}
