package types

import (
	"crypto/rand"
	"math/big"
)

// publicIDLength is the number of digits in an externally visible record ID.
const publicIDLength = 14

// NewPublicID returns a random 14-digit numeric identifier for external use.
// The first digit is never zero so the length is stable. Collisions are
// handled by the unique constraint on the public_id column; callers retry
// on conflict.
func NewPublicID() string {
	digits := make([]byte, publicIDLength)
	for i := range digits {
		lo := int64(0)
		if i == 0 {
			lo = 1
		}
		n, err := rand.Int(rand.Reader, big.NewInt(10-lo))
		if err != nil {
			// crypto/rand failure means the platform RNG is broken.
			panic(err)
		}
		digits[i] = byte('0' + lo + n.Int64())
	}
	return string(digits)
}
