package crate

import (
	"fmt"

	"github.com/jmelville/sealcrate/internal/uuid"
)

// Well-known property names for linked-data entities.
const (
	// PropRecipients is the relation from a sensitive entity to the
	// keyholder entities allowed to read it.
	PropRecipients = "recipients"

	// PropPubkeyFingerprints is the keyholder property carrying the public
	// key fingerprint(s) used to encrypt for that keyholder.
	PropPubkeyFingerprints = "pubkey_fingerprints"
)

// Entity is a node in the crate's metadata graph: an identifier plus its
// JSON-LD properties. Properties holds everything except @id; relation
// values are reference objects as produced by Ref.
type Entity struct {
	ID         string
	Properties map[string]any
}

// NewEntity returns an entity with the given identifier and properties.
// An empty identifier is replaced by a fresh blank-node id of the form
// "#<uuid>". The property map is copied shallowly.
func NewEntity(id string, properties map[string]any) *Entity {
	if id == "" {
		id = "#" + uuid.New()
	}
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	return &Entity{ID: id, Properties: props}
}

// Ref returns a JSON-LD reference object for the given identifier.
func Ref(id string) map[string]any {
	return map[string]any{"@id": id}
}

// Get returns the named property value, or nil when absent.
func (e *Entity) Get(prop string) any {
	return e.Properties[prop]
}

// Set stores a property value.
func (e *Entity) Set(prop string, value any) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[prop] = value
}

// AppendRef appends a reference to the named property, promoting a scalar
// value to a list as needed.
func (e *Entity) AppendRef(prop, id string) {
	ref := Ref(id)
	switch existing := e.Get(prop).(type) {
	case nil:
		e.Set(prop, []any{ref})
	case []any:
		e.Set(prop, append(existing, ref))
	default:
		e.Set(prop, []any{existing, ref})
	}
}

// Types returns the entity's @type values as a list, regardless of whether
// the property holds a single string or a list.
func (e *Entity) Types() []string {
	switch t := e.Get("@type").(type) {
	case string:
		return []string{t}
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// HasType reports whether the entity carries the given @type.
func (e *Entity) HasType(name string) bool {
	for _, t := range e.Types() {
		if t == name {
			return true
		}
	}
	return false
}

// object renders the entity as a JSON-LD object.
func (e *Entity) object() map[string]any {
	obj := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		obj[k] = v
	}
	obj["@id"] = e.ID
	return obj
}

// entityFromObject parses a JSON-LD object back into an entity. The object
// must carry a non-empty @id string.
func entityFromObject(obj map[string]any) (*Entity, error) {
	rawID, ok := obj["@id"]
	if !ok {
		return nil, fmt.Errorf("%w: entity without @id", ErrInvalidMetadata)
	}
	id, ok := rawID.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: entity @id must be a non-empty string", ErrInvalidMetadata)
	}
	props := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == "@id" {
			continue
		}
		props[k] = v
	}
	return &Entity{ID: id, Properties: props}, nil
}

// EncryptedEntity is an entity whose properties are withheld from the public
// graph and written into the crate's encrypted section instead. Recipients
// names the keys the entity is encrypted for; a nil set defers to the
// crate's default recipients at save time.
type EncryptedEntity struct {
	Entity
	Recipients *RecipientSet
}

// NewEncryptedEntity returns a sensitive entity for the given recipients.
// The fingerprint list may be empty, leaving recipient resolution to the
// crate's recipients relation or default set.
func NewEncryptedEntity(id string, properties map[string]any, fingerprints ...string) *EncryptedEntity {
	e := &EncryptedEntity{Entity: *NewEntity(id, properties)}
	if len(fingerprints) > 0 {
		if set, err := NewRecipientSet(fingerprints...); err == nil {
			e.Recipients = set
		}
	}
	return e
}

// AddRecipients widens the entity's recipient set with the given
// fingerprints.
func (e *EncryptedEntity) AddRecipients(fingerprints ...string) error {
	if e.Recipients == nil {
		set, err := NewRecipientSet(fingerprints...)
		if err != nil {
			return err
		}
		e.Recipients = set
		return nil
	}
	set, err := e.Recipients.Merge(fingerprints...)
	if err != nil {
		return err
	}
	e.Recipients = set
	return nil
}

// refIDs extracts the identifiers from a relation value, accepting a single
// reference object, a list of them, or bare string ids.
func refIDs(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case map[string]any:
		if id, ok := v["@id"].(string); ok {
			return []string{id}
		}
		return nil
	case []any:
		var ids []string
		for _, item := range v {
			ids = append(ids, refIDs(item)...)
		}
		return ids
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return nil
	}
}

// stringValues flattens a property value into its string members.
func stringValues(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
