// Package burnkey recognizes the all-0xFF pubkey padding pattern used
// to intentionally burn a multisig slot (spec.md §4.4, "burn keys").
// This is distinct from the all-zero **null key** (spec.md §4.2),
// which ecvalidate.Classify already recognizes as its own Kind; a
// pubkey is never both.
package burnkey

import "bytes"

// Detect reports whether pubkey matches the all-0xFF burn pattern at
// the compressed (33-byte) or uncompressed (65-byte) length.
func Detect(pubkey []byte) (pattern string, ok bool) {
	switch len(pubkey) {
	case 33, 65:
		if isAllFF(pubkey) {
			return "all_ff", true
		}
	}
	return "", false
}

func isAllFF(b []byte) bool {
	return bytes.Equal(b, bytes.Repeat([]byte{0xFF}, len(b)))
}
