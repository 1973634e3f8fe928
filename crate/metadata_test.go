package crate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmelville/sealcrate/keyring"
	"github.com/jmelville/sealcrate/keyring/memory"
	"github.com/jmelville/sealcrate/seal/pgp"
)

// newTestKey generates a small throwaway key and returns its fingerprint.
func newTestKey(t *testing.T, kr *keyring.Keyring, name string) string {
	t.Helper()
	info, err := kr.Generate(t.Context(), name, "", name+"@example.org", keyring.WithKeyBits(1024))
	require.NoError(t, err)
	return info.Fingerprint
}

func unmarshalDoc(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

// sectionBlocks pulls the block dictionaries out of a marshaled document's
// @encrypted member.
func sectionBlocks(t *testing.T, doc map[string]any) []map[string]any {
	t.Helper()
	list, ok := doc["@encrypted"].([]any)
	require.True(t, ok, "@encrypted must be a list")
	blocks := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		require.True(t, ok, "@encrypted entries must be objects")
		blocks = append(blocks, m)
	}
	return blocks
}

func TestCrate_RoundTrip(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	bob := newTestKey(t, kr, "Bob")
	codec := pgp.New(kr)

	c := New(WithCodec(codec))
	c.Add(NewEntity("survey.csv", map[string]any{"@type": "File", "name": "Consent survey"}))
	c.AddEncrypted(NewEncryptedEntity("#participant-1", map[string]any{
		"@type": "Person",
		"name":  "Dana",
	}, alice, bob))
	c.AddEncrypted(NewEncryptedEntity("#participant-2", map[string]any{
		"@type": "Person",
		"name":  "Eli",
	}, bob, alice))

	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	// Sensitive values must not appear anywhere in the document.
	assert.NotContains(t, string(data), "Dana")
	assert.NotContains(t, string(data), "#participant-1")
	assert.Contains(t, string(data), "survey.csv")

	doc := unmarshalDoc(t, data)
	blocks := sectionBlocks(t, doc)
	require.Len(t, blocks, 1)

	// Both entities share one block under the canonical recipient key.
	set, err := NewRecipientSet(alice, bob)
	require.NoError(t, err)
	require.Len(t, blocks[0], 1, "identical recipient sets must share a block")
	require.Contains(t, blocks[0], set.Key())

	loaded, err := Parse(ctx, data, WithCodec(codec))
	require.NoError(t, err)

	got, ok := loaded.Dereference("#participant-1")
	require.True(t, ok)
	assert.Equal(t, "Dana", got.Get("name"))

	recovered := loaded.EncryptedEntities()
	require.Len(t, recovered, 2)
	assert.Equal(t, "#participant-1", recovered[0].ID)
	assert.Equal(t, "#participant-2", recovered[1].ID)
	for _, e := range recovered {
		require.NotNil(t, e.Recipients)
		assert.True(t, e.Recipients.Contains(alice))
		assert.True(t, e.Recipients.Contains(bob))
	}
	assert.Empty(t, loaded.DiscardedBlocks())
}

func TestCrate_Marshal_OmitsEmptySection(t *testing.T) {
	c := New()
	c.Add(NewEntity("data.csv", map[string]any{"@type": "File"}))

	data, err := c.Marshal(t.Context())
	require.NoError(t, err)

	doc := unmarshalDoc(t, data)
	_, ok := doc["@encrypted"]
	assert.False(t, ok, "crates without sensitive entities must omit @encrypted")
}

func TestCrate_Marshal_GroupsByRecipientSet(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	bob := newTestKey(t, kr, "Bob")

	c := New(WithCodec(pgp.New(kr)))
	c.AddEncrypted(NewEncryptedEntity("#a", map[string]any{"name": "a"}, alice))
	c.AddEncrypted(NewEncryptedEntity("#b", map[string]any{"name": "b"}, alice, bob))
	c.AddEncrypted(NewEncryptedEntity("#c", map[string]any{"name": "c"}, alice))

	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	blocks := sectionBlocks(t, unmarshalDoc(t, data))
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0], 2)

	soloKey := alice
	pairSet, err := NewRecipientSet(alice, bob)
	require.NoError(t, err)
	assert.Contains(t, blocks[0], soloKey)
	assert.Contains(t, blocks[0], pairSet.Key())
}

func TestCrate_Marshal_NoRecipients(t *testing.T) {
	kr := keyring.New(memory.NewStore())
	c := New(WithCodec(pgp.New(kr)))
	c.AddEncrypted(NewEncryptedEntity("#p", map[string]any{"name": "Dana"}))

	_, err := c.Marshal(t.Context())
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestCrate_Marshal_NoCodec(t *testing.T) {
	c := New()
	c.AddEncrypted(NewEncryptedEntity("#p", map[string]any{"name": "Dana"}, "AAAA"))

	_, err := c.Marshal(t.Context())
	require.ErrorIs(t, err, ErrNoCodec)
}

func TestCrate_Marshal_UnknownRecipient(t *testing.T) {
	kr := keyring.New(memory.NewStore())
	c := New(WithCodec(pgp.New(kr)))
	c.AddEncrypted(NewEncryptedEntity("#p", map[string]any{"name": "Dana"},
		"00112233445566778899AABBCCDDEEFF00112233"))

	_, err := c.Marshal(t.Context())
	require.Error(t, err)
}

func TestCrate_Marshal_DefaultRecipients(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	codec := pgp.New(kr)

	c := New(WithCodec(codec))
	require.NoError(t, c.SetDefaultRecipients(alice))
	c.AddEncrypted(NewEncryptedEntity("#p", map[string]any{"name": "Dana"}))

	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	blocks := sectionBlocks(t, unmarshalDoc(t, data))
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0], alice)

	loaded, err := Parse(ctx, data, WithCodec(codec))
	require.NoError(t, err)
	got, ok := loaded.Dereference("#p")
	require.True(t, ok)
	assert.Equal(t, "Dana", got.Get("name"))
}

func TestCrate_Marshal_RecipientsRelation(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	info, err := kr.Info(ctx, alice)
	require.NoError(t, err)

	c := New(WithCodec(pgp.New(kr)))
	kh, err := NewKeyholder(*info)
	require.NoError(t, err)
	c.Add(&kh.Entity)

	e := NewEncryptedEntity("#p", map[string]any{"name": "Dana"})
	e.Set(PropRecipients, Ref(kh.ID))
	c.AddEncrypted(e)

	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	blocks := sectionBlocks(t, unmarshalDoc(t, data))
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0], alice)
}

func TestCrate_Marshal_MissingKeyholderFails(t *testing.T) {
	kr := keyring.New(memory.NewStore())
	c := New(WithCodec(pgp.New(kr)))

	e := NewEncryptedEntity("#p", map[string]any{"name": "Dana"})
	e.Set(PropRecipients, Ref("#ghost"))
	c.AddEncrypted(e)

	_, err := c.Marshal(t.Context())
	var missing *MissingKeysError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"#ghost"}, missing.Missing)
}

func TestParse_DiscardsUnreadableBlocks(t *testing.T) {
	ctx := t.Context()

	writerRing := keyring.New(memory.NewStore())
	alice := newTestKey(t, writerRing, "Alice")

	c := New(WithCodec(pgp.New(writerRing)))
	c.AddEncrypted(NewEncryptedEntity("#secret", map[string]any{"name": "Dana"}, alice))
	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	// The reader holds a different key and cannot open the block.
	readerRing := keyring.New(memory.NewStore())
	newTestKey(t, readerRing, "Mallory")
	readerCodec := pgp.New(readerRing)

	loaded, err := Parse(ctx, data, WithCodec(readerCodec))
	require.NoError(t, err)

	_, ok := loaded.Dereference("#secret")
	assert.False(t, ok)
	assert.Empty(t, loaded.EncryptedEntities())
	assert.Equal(t, []string{alice}, loaded.DiscardedBlocks())

	// The discarded block must not survive to the next save.
	out, err := loaded.Marshal(ctx)
	require.NoError(t, err)
	_, ok = unmarshalDoc(t, out)["@encrypted"]
	assert.False(t, ok)
}

func TestParse_PartialRecovery(t *testing.T) {
	ctx := t.Context()

	writerRing := keyring.New(memory.NewStore())
	alice := newTestKey(t, writerRing, "Alice")
	bob := newTestKey(t, writerRing, "Bob")

	c := New(WithCodec(pgp.New(writerRing)))
	c.AddEncrypted(NewEncryptedEntity("#for-alice", map[string]any{"name": "a"}, alice))
	c.AddEncrypted(NewEncryptedEntity("#for-bob", map[string]any{"name": "b"}, bob))
	data, err := c.Marshal(ctx)
	require.NoError(t, err)

	// Bob's ring holds only his key.
	bobRing := keyring.New(memory.NewStore())
	armored, err := writerRing.ExportPrivate(ctx, bob)
	require.NoError(t, err)
	_, err = bobRing.ImportArmored(ctx, armored)
	require.NoError(t, err)
	bobCodec := pgp.New(bobRing)

	loaded, err := Parse(ctx, data, WithCodec(bobCodec))
	require.NoError(t, err)

	_, ok := loaded.Dereference("#for-bob")
	assert.True(t, ok)
	_, ok = loaded.Dereference("#for-alice")
	assert.False(t, ok)
	assert.Equal(t, []string{alice}, loaded.DiscardedBlocks())

	// Re-saving keeps Bob's block and drops Alice's for good.
	out, err := loaded.Marshal(ctx)
	require.NoError(t, err)
	blocks := sectionBlocks(t, unmarshalDoc(t, out))
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0], 1)
	assert.Contains(t, blocks[0], bob)
}

func TestParse_PlainDocument(t *testing.T) {
	doc := fmt.Sprintf(`{
  "@context": %q,
  "@graph": [
    {"@id": %q, "@type": "CreativeWork", "about": {"@id": "./"}},
    {"@id": "./", "@type": "Dataset"}
  ]
}`, DefaultContext, MetadataBasename)

	c, err := Parse(t.Context(), []byte(doc))
	require.NoError(t, err)
	assert.Len(t, c.Entities(), 2)
	assert.Empty(t, c.EncryptedEntities())
	assert.Equal(t, DefaultContext, c.Context())
}

func TestParse_InvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"not json", `{"@context": `, ErrInvalidMetadata},
		{"missing context", `{"@graph": []}`, ErrInvalidMetadata},
		{"missing graph", `{"@context": "ctx"}`, ErrInvalidMetadata},
		{"graph entry not object", `{"@context": "ctx", "@graph": ["nope"]}`, ErrInvalidMetadata},
		{"entity without id", `{"@context": "ctx", "@graph": [{"@type": "Dataset"}]}`, ErrInvalidMetadata},
		{"no descriptor", `{"@context": "ctx", "@graph": [{"@id": "./", "@type": "Dataset"}]}`, ErrNoDescriptor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(t.Context(), []byte(tc.doc))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParse_DescriptorValidation(t *testing.T) {
	graph := func(descriptor, root string) string {
		return fmt.Sprintf(`{"@context": "ctx", "@graph": [%s, %s]}`, descriptor, root)
	}
	validRoot := `{"@id": "./", "@type": "Dataset"}`

	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			"type must be a plain string",
			graph(`{"@id": "ro-crate-metadata.json", "@type": ["CreativeWork"], "about": {"@id": "./"}}`, validRoot),
			ErrInvalidDescriptor,
		},
		{
			"about required",
			graph(`{"@id": "ro-crate-metadata.json", "@type": "CreativeWork"}`, validRoot),
			ErrInvalidDescriptor,
		},
		{
			"about must dereference",
			graph(`{"@id": "ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "missing/"}}`, validRoot),
			ErrInvalidDescriptor,
		},
		{
			"root must be a dataset",
			graph(`{"@id": "ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "./"}}`,
				`{"@id": "./", "@type": "Person"}`),
			ErrInvalidDescriptor,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(t.Context(), []byte(tc.doc))
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("legacy basename accepted", func(t *testing.T) {
		doc := graph(`{"@id": "ro-crate-metadata.jsonld", "@type": "CreativeWork", "about": {"@id": "./"}}`, validRoot)
		_, err := Parse(t.Context(), []byte(doc))
		require.NoError(t, err)
	})

	t.Run("root type list accepted", func(t *testing.T) {
		doc := graph(`{"@id": "ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "./"}}`,
			`{"@id": "./", "@type": ["Dataset", "LabProcess"]}`)
		_, err := Parse(t.Context(), []byte(doc))
		require.NoError(t, err)
	})
}

func TestFindRootEntity_NestedDescriptors(t *testing.T) {
	// No descriptor under the plain basename; the outer crate's root lists
	// the inner descriptor among its parts and must win.
	doc := `{
  "@context": "ctx",
  "@graph": [
    {"@id": "outer/ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "outer/"}},
    {"@id": "outer/", "@type": "Dataset", "hasPart": [{"@id": "inner/ro-crate-metadata.json"}]},
    {"@id": "inner/ro-crate-metadata.json", "@type": "CreativeWork", "about": {"@id": "inner/"}},
    {"@id": "inner/", "@type": "Dataset"}
  ]
}`
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	objects := make(map[string]map[string]any)
	for _, item := range raw["@graph"].([]any) {
		obj := item.(map[string]any)
		objects[obj["@id"].(string)] = obj
	}

	descriptorID, rootID, err := findRootEntity(objects)
	require.NoError(t, err)
	assert.Equal(t, "outer/ro-crate-metadata.json", descriptorID)
	assert.Equal(t, "outer/", rootID)
}

func TestCrate_WriteAndRead(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	codec := pgp.New(kr)

	c := New(WithCodec(codec))
	c.Add(NewEntity("data.csv", map[string]any{"@type": "File"}))
	c.AddEncrypted(NewEncryptedEntity("#p", map[string]any{"name": "Dana"}, alice))

	dir := t.TempDir()
	require.NoError(t, c.Write(ctx, dir))

	t.Run("from directory", func(t *testing.T) {
		loaded, err := Read(ctx, dir, WithCodec(codec))
		require.NoError(t, err)
		got, ok := loaded.Dereference("#p")
		require.True(t, ok)
		assert.Equal(t, "Dana", got.Get("name"))
	})

	t.Run("from file path", func(t *testing.T) {
		loaded, err := Read(ctx, filepath.Join(dir, MetadataBasename), WithCodec(codec))
		require.NoError(t, err)
		_, ok := loaded.Dereference("data.csv")
		assert.True(t, ok)
	})

	t.Run("legacy file name", func(t *testing.T) {
		legacyDir := t.TempDir()
		data, err := os.ReadFile(filepath.Join(dir, MetadataBasename))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(legacyDir, LegacyMetadataBasename), data, 0644))

		_, err = Read(ctx, legacyDir, WithCodec(codec))
		require.NoError(t, err)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := Read(ctx, t.TempDir())
		require.ErrorIs(t, err, ErrNoMetadataFile)
	})
}

func TestParse_ToleratesForeignSectionShapes(t *testing.T) {
	ctx := t.Context()
	kr := keyring.New(memory.NewStore())
	alice := newTestKey(t, kr, "Alice")
	bob := newTestKey(t, kr, "Bob")
	codec := pgp.New(kr)

	build := func(id, name, fp string) map[string]any {
		c := New(WithCodec(codec))
		c.AddEncrypted(NewEncryptedEntity(id, map[string]any{"name": name}, fp))
		data, err := c.Marshal(ctx)
		require.NoError(t, err)
		return sectionBlocks(t, unmarshalDoc(t, data))[0]
	}
	aliceBlock := build("#a", "for alice", alice)
	bobBlock := build("#b", "for bob", bob)

	base := map[string]any{
		"@context": DefaultContext,
		"@graph": []any{
			map[string]any{"@id": MetadataBasename, "@type": "CreativeWork", "about": map[string]any{"@id": "./"}},
			map[string]any{"@id": "./", "@type": "Dataset"},
		},
	}

	t.Run("bare object", func(t *testing.T) {
		base["@encrypted"] = aliceBlock
		data, err := json.Marshal(base)
		require.NoError(t, err)

		loaded, err := Parse(ctx, data, WithCodec(codec))
		require.NoError(t, err)
		_, ok := loaded.Dereference("#a")
		assert.True(t, ok)
	})

	t.Run("several section objects", func(t *testing.T) {
		base["@encrypted"] = []any{aliceBlock, bobBlock}
		data, err := json.Marshal(base)
		require.NoError(t, err)

		loaded, err := Parse(ctx, data, WithCodec(codec))
		require.NoError(t, err)
		_, ok := loaded.Dereference("#a")
		assert.True(t, ok)
		_, ok = loaded.Dereference("#b")
		assert.True(t, ok)
	})

	t.Run("garbage ciphertext discarded", func(t *testing.T) {
		base["@encrypted"] = []any{map[string]any{alice: "not an armored message"}}
		data, err := json.Marshal(base)
		require.NoError(t, err)

		loaded, err := Parse(ctx, data, WithCodec(codec))
		require.NoError(t, err)
		assert.Empty(t, loaded.EncryptedEntities())
	})
}
