// Package sha256 derives stable identifiers from seed URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Sum(string(data)), nil
}

// Sum returns the hex SHA-256 digest of s.
func Sum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Shorten returns s unchanged when it fits in limit bytes, otherwise a prefix
// of s followed by "_" and eight hex digits of its digest, limit bytes total.
func Shorten(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const suffix = 9
	if limit <= suffix {
		return Sum(s)[:limit]
	}
	return s[:limit-suffix] + "_" + Sum(s)[:suffix-1]
}
