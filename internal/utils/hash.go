package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns the hex-encoded SHA-256 of s.
func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashParts hashes the parts joined by "|", so ("a", "b|c") and ("a|b", "c")
// produce the same digest. Callers must not put "|" inside parts they need kept apart.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "|"))
}
