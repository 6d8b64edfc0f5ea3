package download

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// shortHashLen is the number of hex digits used in collision suffixes.
const shortHashLen = 8

// shortHash is a stable 8-digit fingerprint of s.
func shortHash(s string) string {
	sum := sha3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:shortHashLen]
}
