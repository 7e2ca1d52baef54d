package util

import (
	"crypto/sha256"
	"encoding/hex"
)

const ownerPrefixBytes = 16

// OwnerPrefix maps an owner id to a fixed-length hex path segment so provider
// prefixes like "google:" never reach object keys.
func OwnerPrefix(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:ownerPrefixBytes])
}
