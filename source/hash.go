package source

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the SHA-256 digest of content as lowercase hex.
// It is the content-addressing key for deduplication and the persisted
// integrity fingerprint, so it must stay a pure function of the bytes.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
