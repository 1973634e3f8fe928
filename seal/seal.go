// Package seal defines the encryption capability used to protect crate
// metadata. A Codec turns a plaintext block into armored ciphertext readable
// by a set of recipients, and back again. The pgp subpackage implements the
// contract over a local keyring; the gpg subpackage shells out to an external
// gpg executable.
package seal

import (
	"context"
	"errors"
)

var (
	// ErrUnknownRecipient is returned by Encrypt when a recipient fingerprint
	// does not correspond to a usable public key.
	ErrUnknownRecipient = errors.New("no public key for recipient")

	// ErrNoMatchingKey is returned by Decrypt when no available private key
	// can open the ciphertext.
	ErrNoMatchingKey = errors.New("no private key can decrypt the message")
)

// Codec encrypts a plaintext block for a set of recipients and decrypts
// blocks again. Encrypt must produce ciphertext that any single listed
// recipient can open alone, and must fail rather than weaken the recipient
// list when a key is unusable.
type Codec interface {
	Encrypt(ctx context.Context, plaintext []byte, fingerprints []string) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
