package crate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// sensitiveStore is the insertion-ordered registry of sensitive entities.
type sensitiveStore struct {
	order []string
	byID  map[string]*EncryptedEntity
}

func newSensitiveStore() *sensitiveStore {
	return &sensitiveStore{byID: make(map[string]*EncryptedEntity)}
}

func (s *sensitiveStore) add(e *EncryptedEntity) {
	if _, ok := s.byID[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.byID[e.ID] = e
}

func (s *sensitiveStore) get(id string) (*EncryptedEntity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

func (s *sensitiveStore) remove(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *sensitiveStore) list() []*EncryptedEntity {
	out := make([]*EncryptedEntity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// recipientBlock is one encryption unit: every sensitive entity sharing a
// recipient set, in insertion order.
type recipientBlock struct {
	set      *RecipientSet
	entities []*EncryptedEntity
}

// groupSensitive partitions the sensitive registry into blocks keyed by
// canonical recipient set. Block order follows first appearance so saves of
// an unchanged crate are stable.
func (c *Crate) groupSensitive() ([]*recipientBlock, error) {
	var order []string
	byKey := make(map[string]*recipientBlock)
	for _, e := range c.sensitive.list() {
		set, err := c.effectiveRecipients(e)
		if err != nil {
			return nil, err
		}
		key := set.Key()
		blk, ok := byKey[key]
		if !ok {
			blk = &recipientBlock{set: set}
			byKey[key] = blk
			order = append(order, key)
		}
		blk.entities = append(blk.entities, e)
	}
	blocks := make([]*recipientBlock, 0, len(order))
	for _, key := range order {
		blocks = append(blocks, byKey[key])
	}
	return blocks, nil
}

// buildEncryptedSection encrypts every block and assembles the section
// dictionary. It returns nil with no error when the crate holds no
// sensitive entities. Blocks encrypt concurrently; any failure aborts the
// whole build so a save never emits a partial section.
func (c *Crate) buildEncryptedSection(ctx context.Context) (map[string]any, error) {
	blocks, err := c.groupSensitive()
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	if c.codec == nil {
		return nil, ErrNoCodec
	}

	ciphertexts := make([]string, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	for i, blk := range blocks {
		g.Go(func() error {
			objs := make([]map[string]any, 0, len(blk.entities))
			for _, e := range blk.entities {
				objs = append(objs, e.object())
			}
			plaintext, err := json.Marshal(objs)
			if err != nil {
				return fmt.Errorf("marshaling block %s: %w", blk.set.Key(), err)
			}
			sealed, err := c.codec.Encrypt(gctx, plaintext, blk.set.Fingerprints())
			if err != nil {
				return fmt.Errorf("encrypting block %s: %w", blk.set.Key(), err)
			}
			ciphertexts[i] = string(sealed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	section := make(map[string]any, len(blocks))
	for i, blk := range blocks {
		section[blk.set.Key()] = ciphertexts[i]
	}
	return section, nil
}

// mergeEncryptedSection recovers what it can from a document's @encrypted
// member. Blocks that cannot be decrypted or parsed are logged, recorded as
// discarded, and dropped, so they do not survive to the next save.
func (c *Crate) mergeEncryptedSection(ctx context.Context, raw any) {
	for _, section := range sectionMaps(raw) {
		keys := make([]string, 0, len(section))
		for key := range section {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !c.mergeBlock(ctx, key, section[key]) {
				c.discarded = append(c.discarded, key)
			}
		}
	}
}

// sectionMaps normalizes the @encrypted value. This writer emits a list
// holding a single block dictionary, but documents from other writers may
// carry a bare dictionary or several, so all forms are accepted.
func sectionMaps(raw any) []map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok && len(m) > 0 {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// mergeBlock decrypts one block and registers its entities as sensitive,
// tagged with the recipient set recovered from the block key. Any failure
// discards the whole block; the return value reports whether the block was
// merged.
func (c *Crate) mergeBlock(ctx context.Context, key string, value any) bool {
	log := c.log.WithField("block", key)

	ciphertext, ok := value.(string)
	if !ok {
		log.Warn("discarding encrypted block: ciphertext is not a string")
		return false
	}
	set, err := ParseRecipientKey(key)
	if err != nil {
		log.WithError(err).Warn("discarding encrypted block: malformed recipient key")
		return false
	}
	if c.codec == nil {
		log.Warn("discarding encrypted block: no codec configured")
		return false
	}
	plaintext, err := c.codec.Decrypt(ctx, []byte(ciphertext))
	if err != nil {
		log.WithError(err).Info("discarding encrypted block: cannot decrypt")
		return false
	}
	var objs []map[string]any
	if err := json.Unmarshal(plaintext, &objs); err != nil {
		log.WithError(err).Warn("discarding encrypted block: invalid payload")
		return false
	}
	entities := make([]*EncryptedEntity, 0, len(objs))
	for _, obj := range objs {
		e, err := entityFromObject(obj)
		if err != nil {
			log.WithError(err).Warn("discarding encrypted block: invalid entity")
			return false
		}
		entities = append(entities, &EncryptedEntity{Entity: *e, Recipients: set})
	}
	for _, e := range entities {
		c.AddEncrypted(e)
	}
	return true
}
