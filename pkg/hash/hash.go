package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256HexBytes returns the hex-encoded SHA256 hash of b.
func SHA256HexBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Short returns the first n characters of a hex digest, used in log fields.
func Short(digest string, n int) string {
	if n > len(digest) {
		return digest
	}
	return digest[:n]
}
