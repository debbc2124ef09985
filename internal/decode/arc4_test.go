package decode

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestARC4_RoundTrip checks ARC4(ARC4(x, k), k) == x over a spread of
// random keys and payload lengths (spec.md §8, "Round-trip laws").
func TestARC4_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		keyLen := 1 + rng.Intn(32)
		payloadLen := rng.Intn(256)

		key := make([]byte, keyLen)
		rng.Read(key)
		payload := make([]byte, payloadLen)
		rng.Read(payload)

		enc, err := ARC4(payload, key)
		if err != nil {
			t.Fatalf("ARC4 encrypt: %v", err)
		}
		dec, err := ARC4(enc, key)
		if err != nil {
			t.Fatalf("ARC4 decrypt: %v", err)
		}
		if !bytes.Equal(dec, payload) {
			t.Fatalf("round trip mismatch at iteration %d (key len %d, payload len %d)", i, keyLen, payloadLen)
		}
	}
}

func TestARC4_EmptyKeyRejected(t *testing.T) {
	if _, err := ARC4([]byte("data"), nil); err == nil {
		t.Fatal("ARC4 with empty key should return an error")
	}
}
