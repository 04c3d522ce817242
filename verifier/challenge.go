package verifier

import (
	"crypto/sha256"
	"math/big"
)

// Challenge is the Fiat-Shamir hash: SHA-256 over the big-endian bytes of
// every value, in order, read back as a non-negative integer.
func Challenge(values ...*big.Int) *big.Int {
	h := sha256.New()
	for _, v := range values {
		h.Write(v.Bytes())
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
