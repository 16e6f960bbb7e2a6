package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey derives a cache key from structured parts: "prefix:" followed by
// the hex SHA-256 of the parts joined with NUL separators. The separator
// keeps ("ab","c") and ("a","bc") distinct; the full 256-bit digest rules
// out collisions between atoms.
func hashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 digest of data. The file backend uses it to
// map arbitrary keys onto safe filenames.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
