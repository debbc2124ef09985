package classifier

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// generatorPubkeyBytes returns the compressed encoding of k*G, a
// guaranteed-valid secp256k1 point, without requiring a *testing.T.
func generatorPubkeyBytes(k int64) []byte {
	var scalar secp256k1.ModNScalar
	scalar.SetInt(uint32(k))
	var point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &point)
	point.ToAffine()
	pub := secp256k1.NewPublicKey(&point.X, &point.Y)
	return pub.SerializeCompressed()
}

func meta(m, n int, pubkeys ...[]byte) *models.MultisigMeta {
	slots := make([]models.PubkeySlot, len(pubkeys))
	for i, b := range pubkeys {
		slots[i] = models.PubkeySlot{Index: i, Bytes: b}
	}
	return &models.MultisigMeta{RequiredSigs: m, TotalPubkeys: n, Pubkeys: slots}
}

func allFF(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

func TestEvaluateSpendability_SufficientRealKeys(t *testing.T) {
	out := models.Output{Multisig: meta(1, 1, generatorPubkeyBytes(1))}
	r := evaluateSpendability(out)
	if r.IsSpendable == nil || !*r.IsSpendable {
		t.Fatal("want spendable = true")
	}
	if r.SpendabilityTag != models.ReasonSufficientRealKeys {
		t.Fatalf("tag = %s, want sufficient_real_keys", r.SpendabilityTag)
	}
	if r.RealPubkeyCount != 1 {
		t.Fatalf("real count = %d, want 1", r.RealPubkeyCount)
	}
}

func TestEvaluateSpendability_BurnKeysBlock(t *testing.T) {
	// 2-of-2 but one slot is an all-0xFF burn pattern: only one real key
	// can ever sign, short of M=2.
	out := models.Output{Multisig: meta(2, 2, generatorPubkeyBytes(1), allFF(33))}
	r := evaluateSpendability(out)
	if r.IsSpendable == nil || *r.IsSpendable {
		t.Fatal("want spendable = false")
	}
	if r.SpendabilityTag != models.ReasonBurnKeysBlock {
		t.Fatalf("tag = %s, want burn_keys_block_threshold", r.SpendabilityTag)
	}
	if r.BurnKeyCount != 1 {
		t.Fatalf("burn count = %d, want 1", r.BurnKeyCount)
	}
}

func TestEvaluateSpendability_InvalidECPoint(t *testing.T) {
	dataKey := make([]byte, 33)
	dataKey[0] = 0x02
	for i := 1; i < 33; i++ {
		dataKey[i] = 0xAF // off-curve data, not a recognized burn pattern
	}
	out := models.Output{Multisig: meta(1, 1, dataKey)}
	r := evaluateSpendability(out)
	if r.IsSpendable == nil || *r.IsSpendable {
		t.Fatal("want spendable = false")
	}
	if r.SpendabilityTag != models.ReasonInvalidECPoint {
		t.Fatalf("tag = %s, want invalid_ec_point", r.SpendabilityTag)
	}
}

func TestEvaluateSpendability_NullKeysOnly(t *testing.T) {
	out := models.Output{Multisig: meta(1, 1, make([]byte, 33))}
	r := evaluateSpendability(out)
	if r.IsSpendable == nil || *r.IsSpendable {
		t.Fatal("want spendable = false")
	}
	if r.SpendabilityTag != models.ReasonNullKeysOnly {
		t.Fatalf("tag = %s, want null_keys_only", r.SpendabilityTag)
	}
	if r.RealPubkeyCount != 0 || r.BurnKeyCount != 0 {
		t.Fatalf("expected zero real/burn counts for an all-null output, got real=%d burn=%d", r.RealPubkeyCount, r.BurnKeyCount)
	}
}

func TestEvaluateSpendability_NullPaddingDoesNotCountTowardM(t *testing.T) {
	// 2-of-2 with one real key and one null-padded slot: real_keys(1) < M(2).
	out := models.Output{Multisig: meta(2, 2, generatorPubkeyBytes(1), make([]byte, 33))}
	r := evaluateSpendability(out)
	if r.IsSpendable == nil || *r.IsSpendable {
		t.Fatal("null padding must not count toward M; want spendable = false")
	}
	if r.RealPubkeyCount != 1 {
		t.Fatalf("real count = %d, want 1", r.RealPubkeyCount)
	}
}
