// Package checksum computes the content digests used to address blobs,
// manifest records and tree captures.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the algorithm tag carried by every digest string.
const Prefix = "sha256:"

// Sum returns the tagged SHA-256 digest of data, e.g. "sha256:9f86…".
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(h[:])
}

// Valid reports whether s is a well-formed digest produced by Sum.
func Valid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	hexPart := s[len(Prefix):]
	if len(hexPart) != sha256.Size*2 {
		return false
	}
	for _, c := range hexPart {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// Hex strips the algorithm tag.
func Hex(s string) string {
	return strings.TrimPrefix(s, Prefix)
}

// Short returns the first 12 hex characters of the digest of s. It names
// per-target state (lock files, snapshot keys) without exposing full paths.
func Short(s string) string {
	return Hex(Sum([]byte(s)))[:12]
}
