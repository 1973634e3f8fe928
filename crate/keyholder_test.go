package crate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmelville/sealcrate/keyring"
)

func TestNewKeyholder(t *testing.T) {
	info := keyring.PublicKeyInfo{
		Fingerprint: "AAAA1111",
		UIDs:        []string{"Alice Example <alice@example.org>"},
	}

	kh, err := NewKeyholder(info)
	require.NoError(t, err)

	// The identifier is a local reference, the fingerprint property stays bare.
	assert.Equal(t, "#AAAA1111", kh.ID)
	assert.Equal(t, "AAAA1111", kh.Fingerprint())
	assert.True(t, kh.HasType(TypeContactPoint))
	assert.True(t, kh.HasType(TypeKeyholder))
	assert.Equal(t, []string{"Alice Example"}, kh.Get("name"))
	assert.Equal(t, []string{"alice@example.org"}, kh.Get("email"))
	assert.Nil(t, kh.Get("keyserver"))
}

func TestNewKeyholder_WithKeyserver(t *testing.T) {
	info := keyring.PublicKeyInfo{Fingerprint: "AAAA1111"}

	kh, err := NewKeyholder(info, WithKeyserver("https://keys.example.org"))
	require.NoError(t, err)

	wantURL := "https://keys.example.org/pks/lookup?op=index&exact=true&search=AAAA1111"
	assert.Equal(t, wantURL, kh.ID)
	assert.Equal(t, wantURL, kh.Get("url"))
	assert.Equal(t, "https://keys.example.org", kh.Get("keyserver"))
}

func TestNewKeyholder_ExplicitID(t *testing.T) {
	info := keyring.PublicKeyInfo{Fingerprint: "AAAA1111"}

	kh, err := NewKeyholder(info,
		WithKeyholderID("#alice"),
		WithKeyserver("https://keys.example.org"),
	)
	require.NoError(t, err)
	assert.Equal(t, "#alice", kh.ID)
}

func TestNewKeyholder_RequiresIdentifier(t *testing.T) {
	_, err := NewKeyholder(keyring.PublicKeyInfo{})
	require.Error(t, err)

	kh, err := NewKeyholder(keyring.PublicKeyInfo{}, WithKeyholderID("#anon"))
	require.NoError(t, err)
	assert.Equal(t, "#anon", kh.ID)
	assert.Equal(t, "", kh.Fingerprint())
}

func TestKeyholder_ResolvesAsRecipient(t *testing.T) {
	c := New()
	kh, err := NewKeyholder(keyring.PublicKeyInfo{
		Fingerprint: "AAAA1111",
		UIDs:        []string{"Alice Example <alice@example.org>"},
	})
	require.NoError(t, err)
	c.Add(&kh.Entity)

	e := NewEncryptedEntity("#p", nil)
	e.Set(PropRecipients, Ref(kh.ID))
	c.AddEncrypted(e)

	set, err := c.CombineRecipientKeys(e)
	require.NoError(t, err)
	assert.Equal(t, "AAAA1111", set.Key())
}
