package crate

import (
	"fmt"
	"sort"
	"strings"
)

// RecipientSet is an immutable, canonicalized set of public key fingerprints.
// Fingerprints are trimmed, uppercased, deduplicated and sorted on
// construction, so two sets naming the same keys in any order or case are
// equal and produce the same Key.
type RecipientSet struct {
	fingerprints []string
}

// NewRecipientSet builds a recipient set from the given fingerprints.
// It returns ErrNoRecipients when no usable fingerprint remains after
// normalization.
func NewRecipientSet(fingerprints ...string) (*RecipientSet, error) {
	seen := make(map[string]bool, len(fingerprints))
	cleaned := make([]string, 0, len(fingerprints))
	for _, fp := range fingerprints {
		fp = strings.ToUpper(strings.TrimSpace(fp))
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		cleaned = append(cleaned, fp)
	}
	if len(cleaned) == 0 {
		return nil, ErrNoRecipients
	}
	sort.Strings(cleaned)
	return &RecipientSet{fingerprints: cleaned}, nil
}

// ParseRecipientKey inverts Key: it splits a comma-joined fingerprint list
// back into a recipient set.
func ParseRecipientKey(key string) (*RecipientSet, error) {
	set, err := NewRecipientSet(strings.Split(key, ",")...)
	if err != nil {
		return nil, fmt.Errorf("recipient key %q: %w", key, err)
	}
	return set, nil
}

// Key returns the canonical comma-joined form used as the block dictionary
// key in the encrypted section.
func (s *RecipientSet) Key() string {
	return strings.Join(s.fingerprints, ",")
}

// Fingerprints returns a copy of the canonical fingerprint list.
func (s *RecipientSet) Fingerprints() []string {
	out := make([]string, len(s.fingerprints))
	copy(out, s.fingerprints)
	return out
}

// Len returns the number of fingerprints in the set.
func (s *RecipientSet) Len() int {
	return len(s.fingerprints)
}

// Contains reports whether the set names the given fingerprint, ignoring
// case and surrounding whitespace.
func (s *RecipientSet) Contains(fingerprint string) bool {
	fp := strings.ToUpper(strings.TrimSpace(fingerprint))
	for _, have := range s.fingerprints {
		if have == fp {
			return true
		}
	}
	return false
}

// Equal reports whether both sets name exactly the same fingerprints.
func (s *RecipientSet) Equal(other *RecipientSet) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fingerprints) != len(other.fingerprints) {
		return false
	}
	for i, fp := range s.fingerprints {
		if other.fingerprints[i] != fp {
			return false
		}
	}
	return true
}

// Merge returns a new set containing this set's fingerprints plus the given
// ones.
func (s *RecipientSet) Merge(fingerprints ...string) (*RecipientSet, error) {
	return NewRecipientSet(append(s.Fingerprints(), fingerprints...)...)
}

func (s *RecipientSet) String() string {
	return s.Key()
}
