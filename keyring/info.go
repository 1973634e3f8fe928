package keyring

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/jmelville/sealcrate/internal/util"
)

// NoValidEmail is the email value reported for a key UID that does not carry
// a parseable address.
const NoValidEmail = "No Valid Email"

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// PublicKeyInfo describes a stored key: the uppercase hex fingerprint of its
// primary key, the public key algorithm, and the key's user IDs.
type PublicKeyInfo struct {
	Fingerprint string    `json:"fingerprint"`
	Algorithm   string    `json:"algorithm"`
	UIDs        []string  `json:"uids"`
	HasPrivate  bool      `json:"has_private"`
	CreatedAt   time.Time `json:"created_at"`
}

// PrimaryUID returns the key's first UID, or "" for a key without identities.
func (i PublicKeyInfo) PrimaryUID() string {
	if len(i.UIDs) == 0 {
		return ""
	}
	return i.UIDs[0]
}

// SplitUID splits a key UID of the form "Name <email>" into its name and
// email parts. A single-token UID is treated as both name and address. When
// the address does not parse, the whole UID is returned as the name with
// NoValidEmail as the email.
func SplitUID(uid string) (name, email string) {
	parts := strings.Split(uid, " ")
	if len(parts) > 1 {
		email = strings.Trim(parts[len(parts)-1], "<> ")
		name = strings.TrimSpace(strings.Join(parts[:len(parts)-1], " "))
	} else {
		name = strings.Trim(uid, "<> ")
		email = name
	}
	if !emailRE.MatchString(email) {
		return uid, NoValidEmail
	}
	return name, email
}

func algoString(algo packet.PublicKeyAlgorithm) string {
	switch algo {
	case packet.PubKeyAlgoRSA, packet.PubKeyAlgoRSAEncryptOnly, packet.PubKeyAlgoRSASignOnly:
		return "RSA"
	case packet.PubKeyAlgoDSA:
		return "DSA"
	case packet.PubKeyAlgoElGamal:
		return "ElGamal"
	case packet.PubKeyAlgoECDH:
		return "ECDH"
	case packet.PubKeyAlgoECDSA:
		return "ECDSA"
	default:
		return fmt.Sprintf("unknown(%d)", algo)
	}
}

func infoFromEntity(e *openpgp.Entity, hasPrivate bool, createdAt time.Time) PublicKeyInfo {
	uids := make([]string, 0, len(e.Identities))
	for name := range e.Identities {
		uids = append(uids, name)
	}
	sort.Strings(uids)
	return PublicKeyInfo{
		Fingerprint: util.HexUpper(e.PrimaryKey.Fingerprint[:]),
		Algorithm:   algoString(e.PrimaryKey.PubKeyAlgo),
		UIDs:        uids,
		HasPrivate:  hasPrivate,
		CreatedAt:   createdAt,
	}
}
