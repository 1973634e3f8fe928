// Package crate implements research-object crates whose metadata graph can
// contain sensitive entities. Plain entities are written to the public
// @graph of the metadata document; sensitive entities are grouped by
// recipient set, encrypted through a seal.Codec, and written to the
// document's @encrypted section. On load, blocks the local keys cannot open
// are discarded so a later save never re-emits ciphertext the crate holder
// has lost control over.
package crate

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jmelville/sealcrate/seal"
)

// Crate is an in-memory metadata document: a linked-data graph plus a
// registry of sensitive entities awaiting encryption. A Crate is not safe
// for concurrent mutation.
type Crate struct {
	jsonldContext any
	entities      map[string]*Entity
	order         []string
	sensitive     *sensitiveStore
	discarded     []string
	defaults      *RecipientSet
	codec         seal.Codec
	log           logrus.FieldLogger
}

// New returns an empty crate seeded with a metadata file descriptor and a
// root dataset entity.
func New(opts ...Option) *Crate {
	c := newBare(opts...)
	c.Add(NewEntity(MetadataBasename, map[string]any{
		"@type":      "CreativeWork",
		"conformsTo": Ref(Profile),
		"about":      Ref(RootID),
	}))
	c.Add(NewEntity(RootID, map[string]any{
		"@type": "Dataset",
	}))
	return c
}

func newBare(opts ...Option) *Crate {
	c := &Crate{
		jsonldContext: DefaultContext,
		entities:      make(map[string]*Entity),
		sensitive:     newSensitiveStore(),
		log:           defaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

// Add inserts or replaces a plain entity in the graph. An entity previously
// registered as sensitive under the same identifier loses that status.
func (c *Crate) Add(e *Entity) {
	c.sensitive.remove(e.ID)
	if _, ok := c.entities[e.ID]; !ok {
		c.order = append(c.order, e.ID)
	}
	c.entities[e.ID] = e
}

// AddEncrypted registers a sensitive entity. Its properties are withheld
// from the public graph and written to the encrypted section on save. A
// plain entity with the same identifier is replaced.
func (c *Crate) AddEncrypted(e *EncryptedEntity) {
	c.removePlain(e.ID)
	c.sensitive.add(e)
}

// Encrypt marks an existing plain entity as sensitive for the given
// fingerprints. With no fingerprints the entity falls back to its
// recipients relation or the crate default at save time.
func (c *Crate) Encrypt(id string, fingerprints ...string) (*EncryptedEntity, error) {
	e, ok := c.entities[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	ee := &EncryptedEntity{Entity: *e}
	if len(fingerprints) > 0 {
		set, err := NewRecipientSet(fingerprints...)
		if err != nil {
			return nil, err
		}
		ee.Recipients = set
	}
	c.AddEncrypted(ee)
	return ee, nil
}

// Decrypt reverts a sensitive entity to a plain graph entity. Its recipient
// set is discarded and its properties become public on the next save.
func (c *Crate) Decrypt(id string) (*Entity, error) {
	ee, ok := c.sensitive.get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	e := ee.Entity
	c.Add(&e)
	return &e, nil
}

// Remove deletes the entity with the given identifier, plain or sensitive.
func (c *Crate) Remove(id string) {
	c.removePlain(id)
	c.sensitive.remove(id)
}

func (c *Crate) removePlain(id string) {
	if _, ok := c.entities[id]; !ok {
		return
	}
	delete(c.entities, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Dereference resolves an identifier to its entity, whether plain or
// sensitive. Sensitive entities discarded on load do not resolve.
func (c *Crate) Dereference(id string) (*Entity, bool) {
	if e, ok := c.entities[id]; ok {
		return e, true
	}
	if ee, ok := c.sensitive.get(id); ok {
		return &ee.Entity, true
	}
	return nil, false
}

// Entities returns the plain graph entities in insertion order.
func (c *Crate) Entities() []*Entity {
	out := make([]*Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entities[id])
	}
	return out
}

// EncryptedEntities returns the sensitive entities in insertion order.
func (c *Crate) EncryptedEntities() []*EncryptedEntity {
	return c.sensitive.list()
}

// DiscardedBlocks returns the recipient keys of encrypted blocks that could
// not be recovered when the crate was loaded. Discarded blocks are dropped
// from the next save.
func (c *Crate) DiscardedBlocks() []string {
	out := make([]string, len(c.discarded))
	copy(out, c.discarded)
	return out
}

// SetDefaultRecipients replaces the crate-level recipient set used by
// sensitive entities that do not declare their own.
func (c *Crate) SetDefaultRecipients(fingerprints ...string) error {
	set, err := NewRecipientSet(fingerprints...)
	if err != nil {
		return err
	}
	c.defaults = set
	return nil
}

// DefaultRecipients returns the crate-level default recipient set, or nil.
func (c *Crate) DefaultRecipients() *RecipientSet {
	return c.defaults
}

// Context returns the document's @context value.
func (c *Crate) Context() any {
	return c.jsonldContext
}

// SetContext replaces the document's @context value.
func (c *Crate) SetContext(value any) {
	c.jsonldContext = value
}

// CombineRecipientKeys resolves an entity's recipients relation into a
// recipient set by collecting fingerprints from the referenced keyholder
// entities. It returns ErrNoValidKeys when the relation yields no usable
// fingerprint at all, and a MissingKeysError when any referenced keyholder
// cannot supply one.
func (c *Crate) CombineRecipientKeys(e *EncryptedEntity) (*RecipientSet, error) {
	ids := refIDs(e.Get(PropRecipients))
	if len(ids) == 0 {
		return nil, ErrNoValidKeys
	}

	var fingerprints []string
	var missing []string
	for _, id := range ids {
		holder, ok := c.Dereference(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		fps := stringValues(holder.Get(PropPubkeyFingerprints))
		if len(fps) == 0 {
			missing = append(missing, id)
			continue
		}
		fingerprints = append(fingerprints, fps...)
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Missing: missing}
	}
	set, err := NewRecipientSet(fingerprints...)
	if err != nil {
		return nil, ErrNoValidKeys
	}
	return set, nil
}

// effectiveRecipients picks the set an entity is encrypted for: its own
// recipient set, then its recipients relation, then the crate default.
func (c *Crate) effectiveRecipients(e *EncryptedEntity) (*RecipientSet, error) {
	if e.Recipients != nil && e.Recipients.Len() > 0 {
		return e.Recipients, nil
	}
	if e.Get(PropRecipients) != nil {
		set, err := c.CombineRecipientKeys(e)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.ID, err)
		}
		return set, nil
	}
	if c.defaults != nil {
		return c.defaults, nil
	}
	return nil, fmt.Errorf("entity %s: %w", e.ID, ErrNoRecipients)
}
