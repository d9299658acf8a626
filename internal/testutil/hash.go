package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex is the lowercase hex digest of data, the form catalog entries use
// for an archive's sha256 field. Tests build WADs in memory and pin them in a
// catalog entry with it.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
