// Package ecvalidate decides whether a candidate pubkey is a valid
// secp256k1 point, a distinguished null (all-zero) key, or a data key.
package ecvalidate

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Kind classifies a pubkey slot for downstream spendability accounting.
type Kind int

const (
	KindDataKey Kind = iota // fails EC validation
	KindNullKey             // all-zero padding
	KindRealKey             // valid secp256k1 point
)

// Classify decides the Kind of a 33- or 65-byte candidate pubkey.
// Validation is delegated to decred's secp256k1.ParsePubKey, which
// rejects wrong lengths/prefixes and off-curve points identically to
// the check spec.md §4.2 describes.
func Classify(pubkey []byte) Kind {
	if isAllZero(pubkey) {
		return KindNullKey
	}
	if len(pubkey) != 33 && len(pubkey) != 65 {
		return KindDataKey
	}
	if _, err := secp256k1.ParsePubKey(pubkey); err != nil {
		return KindDataKey
	}
	return KindRealKey
}

// IsValid reports whether pubkey is a real (non-null) secp256k1 point.
func IsValid(pubkey []byte) bool {
	return Classify(pubkey) == KindRealKey
}

func isAllZero(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return bytes.Equal(b, make([]byte, len(b)))
}
