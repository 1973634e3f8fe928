package util

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization so that visually identical
// passphrases entered on different platforms produce identical bytes.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// HexUpper renders b as uppercase hex, the conventional form for
// OpenPGP key fingerprints.
func HexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
