package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// HashFields builds a deterministic hash over an ordered list of fields.
func HashFields(fields ...string) Hash {
	return NewHash([]byte(strings.Join(fields, "|")))
}

// SortedKeys returns the keys of a string map in ascending order. Used
// wherever map iteration order would otherwise leak into results.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
