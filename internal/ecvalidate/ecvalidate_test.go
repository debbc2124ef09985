package ecvalidate

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generatorMultiple returns the compressed encoding of k*G.
func generatorMultiple(t *testing.T, k int64) []byte {
	t.Helper()
	var scalar secp256k1.ModNScalar
	scalar.SetInt(uint32(k))
	var point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &point)
	point.ToAffine()
	pub := secp256k1.NewPublicKey(&point.X, &point.Y)
	return pub.SerializeCompressed()
}

func TestClassify_AcceptsGeneratorMultiples(t *testing.T) {
	for _, k := range []int64{1, 2, 3, 42, 1000} {
		pk := generatorMultiple(t, k)
		if got := Classify(pk); got != KindRealKey {
			t.Errorf("Classify(%d*G) = %v, want KindRealKey", k, got)
		}
		if !IsValid(pk) {
			t.Errorf("IsValid(%d*G) = false, want true", k)
		}
	}
}

func TestClassify_RejectsAllZero33Byte(t *testing.T) {
	pk := make([]byte, 33)
	if got := Classify(pk); got != KindNullKey {
		t.Fatalf("Classify(all-zero 33) = %v, want KindNullKey", got)
	}
	if IsValid(pk) {
		t.Fatalf("IsValid(all-zero 33) = true, want false")
	}
}

func TestClassify_RejectsOffCurveData(t *testing.T) {
	pk := make([]byte, 33)
	pk[0] = 0x02
	for i := 1; i < 33; i++ {
		pk[i] = 0xff
	}
	if got := Classify(pk); got != KindDataKey {
		t.Fatalf("Classify(off-curve) = %v, want KindDataKey", got)
	}
}

func TestClassify_RejectsWrongLength(t *testing.T) {
	if got := Classify(make([]byte, 10)); got != KindDataKey {
		t.Fatalf("Classify(10 bytes) = %v, want KindDataKey", got)
	}
}
