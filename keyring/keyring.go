// Package keyring manages the local OpenPGP key material used to encrypt and
// decrypt crate metadata. Keys are held as armored records in a pluggable
// Store; the bbolt and memory subpackages provide persistent and in-memory
// backends. The keyring itself never performs message encryption, it only
// produces the entities that the codec layers consume.
package keyring

import (
	"bytes"
	"context"
	"crypto"
	_ "crypto/sha256" // registers SHA-256 for the generated-key hash preference
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/jmelville/sealcrate/internal/util"
)

var (
	// ErrInvalidArmor is returned when armored key data cannot be decoded or
	// contains no keys.
	ErrInvalidArmor = errors.New("invalid armored key data")

	// ErrNoPrivateKey is returned when an operation requires private key
	// material that the keyring does not hold.
	ErrNoPrivateKey = errors.New("key has no private material")

	// ErrWrongPassphrase is returned when a passphrase does not unlock the
	// targeted private key.
	ErrWrongPassphrase = errors.New("passphrase does not unlock the key")
)

const defaultKeyBits = 3072

// Keyring provides key generation, import/export and lookup over a Store.
// Unlocked private keys are cached in memory for the life of the Keyring and
// never written back to the store.
type Keyring struct {
	store Store

	mu       sync.RWMutex
	unlocked map[string]*openpgp.Entity
}

// New returns a Keyring over the given store.
func New(store Store) *Keyring {
	return &Keyring{store: store, unlocked: make(map[string]*openpgp.Entity)}
}

type generateConfig struct {
	bits int
}

// GenerateOption customizes key generation.
type GenerateOption func(*generateConfig)

// WithKeyBits sets the RSA key size in bits. The default is 3072.
func WithKeyBits(bits int) GenerateOption {
	return func(c *generateConfig) { c.bits = bits }
}

// Generate creates a new RSA key for the given identity, stores it, and
// returns its public information. The key's self-signature advertises SHA-256
// and AES-256 preferences so messages can be encrypted to it. Generated
// private keys are stored without passphrase protection; the store is
// expected to live in a file readable only by its owner.
func (k *Keyring) Generate(ctx context.Context, name, comment, email string, opts ...GenerateOption) (*PublicKeyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := generateConfig{bits: defaultKeyBits}
	for _, opt := range opts {
		opt(&cfg)
	}

	entity, err := openpgp.NewEntity(name, comment, email, &packet.Config{
		RSABits:       cfg.bits,
		DefaultHash:   crypto.SHA256,
		DefaultCipher: packet.CipherAES256,
	})
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	armored, err := armorPrivate(entity)
	if err != nil {
		return nil, err
	}

	fp := util.HexUpper(entity.PrimaryKey.Fingerprint[:])
	rec := &Record{
		Fingerprint: fp,
		Armored:     armored,
		HasPrivate:  true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := k.store.Put(fp, rec); err != nil {
		return nil, fmt.Errorf("storing generated key: %w", err)
	}

	info := infoFromEntity(entity, true, rec.CreatedAt)
	return &info, nil
}

// ImportArmored adds every key found in the armored block to the keyring and
// returns their public information. The block is stored verbatim, so a
// passphrase-protected private key stays protected; use Unlock before
// decrypting with it. Re-importing a known fingerprint replaces its record.
func (k *Keyring) ImportArmored(ctx context.Context, armored string) ([]PublicKeyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArmor, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no keys in block", ErrInvalidArmor)
	}

	now := time.Now().UTC()
	infos := make([]PublicKeyInfo, 0, len(entities))
	for _, entity := range entities {
		fp := util.HexUpper(entity.PrimaryKey.Fingerprint[:])
		hasPrivate := entity.PrivateKey != nil
		rec := &Record{
			Fingerprint: fp,
			Armored:     armored,
			HasPrivate:  hasPrivate,
			CreatedAt:   now,
		}
		if err := k.store.Put(fp, rec); err != nil {
			return nil, fmt.Errorf("storing imported key %s: %w", fp, err)
		}
		infos = append(infos, infoFromEntity(entity, hasPrivate, now))
	}
	return infos, nil
}

// ExportPublic returns the armored public key block for the given fingerprint.
func (k *Keyring) ExportPublic(ctx context.Context, fingerprint string) (string, error) {
	entity, err := k.EntityFor(ctx, fingerprint)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return "", fmt.Errorf("starting armor block: %w", err)
	}
	if err := entity.Serialize(aw); err != nil {
		return "", fmt.Errorf("serializing public key: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("closing armor block: %w", err)
	}
	return buf.String(), nil
}

// ExportPrivate returns the stored armored block for a key that includes
// private material. The block is returned exactly as stored, so a
// passphrase-protected key stays protected.
func (k *Keyring) ExportPrivate(ctx context.Context, fingerprint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := k.store.Get(NormalizeFingerprint(fingerprint))
	if err != nil {
		return "", err
	}
	if !rec.HasPrivate {
		return "", fmt.Errorf("%s: %w", rec.Fingerprint, ErrNoPrivateKey)
	}
	return rec.Armored, nil
}

// Info returns the public information for a single stored key.
func (k *Keyring) Info(ctx context.Context, fingerprint string) (*PublicKeyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := k.store.Get(NormalizeFingerprint(fingerprint))
	if err != nil {
		return nil, err
	}
	entity, err := entityFromRecord(rec)
	if err != nil {
		return nil, err
	}
	info := infoFromEntity(entity, rec.HasPrivate, rec.CreatedAt)
	return &info, nil
}

// List returns the public information for every stored key, ordered by
// fingerprint.
func (k *Keyring) List(ctx context.Context) ([]PublicKeyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fps, err := k.store.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(fps)

	infos := make([]PublicKeyInfo, 0, len(fps))
	for _, fp := range fps {
		info, err := k.Info(ctx, fp)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// Delete removes a key from the store and drops any unlocked copy.
func (k *Keyring) Delete(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp := NormalizeFingerprint(fingerprint)

	k.mu.Lock()
	delete(k.unlocked, fp)
	k.mu.Unlock()

	return k.store.Delete(fp)
}

// EntityFor returns the parsed entity whose primary key matches the given
// fingerprint, preferring an unlocked copy when one exists.
func (k *Keyring) EntityFor(ctx context.Context, fingerprint string) (*openpgp.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp := NormalizeFingerprint(fingerprint)

	k.mu.RLock()
	cached, ok := k.unlocked[fp]
	k.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rec, err := k.store.Get(fp)
	if err != nil {
		return nil, err
	}
	return entityFromRecord(rec)
}

// Entities returns every stored key as an entity list ordered by fingerprint,
// with unlocked private keys substituted where Unlock has been called.
func (k *Keyring) Entities(ctx context.Context) (openpgp.EntityList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fps, err := k.store.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(fps)

	list := make(openpgp.EntityList, 0, len(fps))
	for _, fp := range fps {
		entity, err := k.EntityFor(ctx, fp)
		if err != nil {
			return nil, err
		}
		list = append(list, entity)
	}
	return list, nil
}

// Unlock decrypts the private material of the given key with the enclave
// passphrase and keeps the unlocked entity in memory. Keys generated by this
// keyring need no unlocking; imported keys may. The passphrase is
// NFKD-normalized before use and wiped afterwards.
func (k *Keyring) Unlock(ctx context.Context, fingerprint string, passphrase *memguard.Enclave) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp := NormalizeFingerprint(fingerprint)

	rec, err := k.store.Get(fp)
	if err != nil {
		return err
	}
	if !rec.HasPrivate {
		return fmt.Errorf("%s: %w", fp, ErrNoPrivateKey)
	}
	entity, err := entityFromRecord(rec)
	if err != nil {
		return err
	}

	buf, err := passphrase.Open()
	if err != nil {
		return fmt.Errorf("opening passphrase enclave: %w", err)
	}
	defer buf.Destroy()

	pw := []byte(util.Normalize(buf.String()))
	defer util.WipeBytes(pw)

	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt(pw); err != nil {
			return fmt.Errorf("%s: %w", fp, ErrWrongPassphrase)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(pw); err != nil {
				return fmt.Errorf("%s subkey: %w", fp, ErrWrongPassphrase)
			}
		}
	}

	k.mu.Lock()
	k.unlocked[fp] = entity
	k.mu.Unlock()
	return nil
}

// NormalizeFingerprint uppercases and trims a fingerprint so lookups are
// case-insensitive.
func NormalizeFingerprint(fingerprint string) string {
	return strings.ToUpper(strings.TrimSpace(fingerprint))
}

// entityFromRecord parses a record's armored block and selects the entity the
// record is keyed by. Records written by ImportArmored may carry several keys
// in one block.
func entityFromRecord(rec *Record) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(rec.Armored))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArmor, err)
	}
	for _, e := range entities {
		if util.HexUpper(e.PrimaryKey.Fingerprint[:]) == rec.Fingerprint {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", rec.Fingerprint, ErrKeyNotFound)
}

func armorPrivate(e *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		return "", fmt.Errorf("starting armor block: %w", err)
	}
	if err := e.SerializePrivate(aw, nil); err != nil {
		return "", fmt.Errorf("serializing private key: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("closing armor block: %w", err)
	}
	return buf.String(), nil
}
