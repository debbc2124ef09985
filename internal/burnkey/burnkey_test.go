package burnkey

import "testing"

func TestDetect_AllFF(t *testing.T) {
	pk := make([]byte, 33)
	for i := range pk {
		pk[i] = 0xFF
	}
	pattern, ok := Detect(pk)
	if !ok || pattern != "all_ff" {
		t.Fatalf("Detect(all-0xFF 33) = (%q, %v), want (all_ff, true)", pattern, ok)
	}
}

func TestDetect_AllZeroIsNotABurnKey(t *testing.T) {
	// All-zero is the distinguished null key (spec §4.2), a separate
	// category from burn keys; burnkey must not claim it.
	pk := make([]byte, 33)
	if _, ok := Detect(pk); ok {
		t.Fatal("Detect(all-zero) should not match — that's the null key, not a burn key")
	}
}

func TestDetect_WrongLength(t *testing.T) {
	pk := make([]byte, 20)
	for i := range pk {
		pk[i] = 0xFF
	}
	if _, ok := Detect(pk); ok {
		t.Fatal("Detect should reject lengths other than 33/65")
	}
}

func TestDetect_RealKeyNoMatch(t *testing.T) {
	pk := make([]byte, 33)
	pk[0] = 0x02
	pk[32] = 0x01
	if _, ok := Detect(pk); ok {
		t.Fatal("Detect should not match an ordinary non-burn byte pattern")
	}
}
