package verifier

import (
	"errors"

	"clverify/issuerkey"
	"clverify/proof"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownKey       = errors.New("unknown issuer key")
	ErrUnknownCredDef   = errors.New("unknown credential definition")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrMalformedProof   = errors.New("malformed proof")
)

// IsStructural reports whether err means the proof or key material could
// not be interpreted, as opposed to a store or transport failure.
func IsStructural(err error) bool {
	for _, target := range []error{
		ErrMissingAttribute,
		ErrMalformedProof,
		proof.ErrDecode,
		issuerkey.ErrInvalidKeyMaterial,
		issuerkey.ErrDecode,
		issuerkey.ErrUnsupportedValueType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
