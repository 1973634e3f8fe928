package util

import "testing"

func TestWipeBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	WipeBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("WipeBytes left byte %d at %#x", i, v)
		}
	}
}

func TestHexUpper(t *testing.T) {
	upper := HexUpper([]byte{0xab, 0xcd, 0xef})
	if upper != "ABCDEF" {
		t.Errorf("HexUpper failed, got %s", upper)
	}
}

func TestNormalize(t *testing.T) {
	// Composed U+00E9 must decompose to "e" + combining acute.
	if got := Normalize("café"); got != "café" {
		t.Errorf("Normalize failed, got %q", got)
	}
	if got := Normalize("plain ascii"); got != "plain ascii" {
		t.Errorf("Normalize changed ASCII input, got %q", got)
	}
}
