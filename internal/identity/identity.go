// Package identity derives the content key used to deduplicate conversion
// jobs and to name their output directories.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyLength is the length of a key returned by KeyOf.
const KeyLength = sha256.Size * 2

// Normalize returns the canonical form of a source URL. Callers must apply
// the same normalization before hashing and before any directory lookups,
// which KeyOf does on their behalf.
func Normalize(sourceURL string) string {
	return strings.TrimSpace(sourceURL)
}

// KeyOf returns the content key for the source URL provided: the
// lowercase hex SHA-256 digest of the normalized URL.
func KeyOf(sourceURL string) string {
	sum := sha256.Sum256([]byte(Normalize(sourceURL)))
	return hex.EncodeToString(sum[:])
}

// IsKey reports whether the string provided has the shape of a key
// produced by KeyOf. It is used to reject path-like input before any
// filesystem access happens.
func IsKey(key string) bool {
	if len(key) != KeyLength {
		return false
	}

	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}
