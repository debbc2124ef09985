package script

import (
	"bytes"
	"testing"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

func pk33(fill byte) models.PubkeySlot {
	b := make([]byte, 33)
	b[0] = 0x02
	for i := 1; i < 33; i++ {
		b[i] = fill
	}
	return models.PubkeySlot{Bytes: b}
}

func TestParse_RoundTrip(t *testing.T) {
	meta := &models.MultisigMeta{
		RequiredSigs: 2,
		TotalPubkeys: 3,
		Pubkeys:      []models.PubkeySlot{pk33(0x11), pk33(0x22), pk33(0x33)},
	}
	raw := Serialize(meta)

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(Serialize(meta)) returned error: %v", err)
	}
	if got.RequiredSigs != meta.RequiredSigs || got.TotalPubkeys != meta.TotalPubkeys {
		t.Fatalf("round-trip M/N mismatch: got %d-of-%d, want %d-of-%d",
			got.RequiredSigs, got.TotalPubkeys, meta.RequiredSigs, meta.TotalPubkeys)
	}
	for i, pk := range got.Pubkeys {
		if !bytes.Equal(pk.Bytes, meta.Pubkeys[i].Bytes) {
			t.Fatalf("pubkey slot %d mismatch after round-trip", i)
		}
	}

	raw2 := Serialize(got)
	got2, err := Parse(raw2)
	if err != nil {
		t.Fatalf("second round-trip failed: %v", err)
	}
	if got2.RequiredSigs != got.RequiredSigs || got2.TotalPubkeys != got.TotalPubkeys {
		t.Fatalf("Parse -> Serialize -> Parse is not the identity")
	}
}

func TestParse_MGreaterThanN(t *testing.T) {
	meta := &models.MultisigMeta{
		RequiredSigs: 3,
		TotalPubkeys: 2,
		Pubkeys:      []models.PubkeySlot{pk33(0x01), pk33(0x02)},
	}
	raw := serializeIgnoringMN(meta)
	if _, err := Parse(raw); err != ErrMGreaterThanN {
		t.Fatalf("Parse(3-of-2) = %v, want ErrMGreaterThanN", err)
	}
}

// serializeIgnoringMN writes OP_3 ... OP_2 OP_CHECKMULTISIG directly,
// since Serialize itself has no way to express an M>N script.
func serializeIgnoringMN(meta *models.MultisigMeta) []byte {
	out := []byte{byte(op1 + meta.RequiredSigs - 1)}
	for _, pk := range meta.Pubkeys {
		out = append(out, opPushData33)
		out = append(out, pk.Bytes...)
	}
	out = append(out, byte(op1+meta.TotalPubkeys-1), opCheckMultisig)
	return out
}

func TestParse_TooShort(t *testing.T) {
	if _, err := Parse([]byte{0x51, 0xae}); err != ErrTooShort {
		t.Fatalf("Parse(short) = %v, want ErrTooShort", err)
	}
}

func TestParse_BadPushLength(t *testing.T) {
	raw := []byte{0x51, 0x20}
	raw = append(raw, make([]byte, 32)...)
	raw = append(raw, 0x51, opCheckMultisig)
	if _, err := Parse(raw); err != ErrBadPushLen {
		t.Fatalf("Parse(bad push len) = %v, want ErrBadPushLen", err)
	}
}

func TestParse_MissingCheckMultisig(t *testing.T) {
	meta := &models.MultisigMeta{RequiredSigs: 1, TotalPubkeys: 1, Pubkeys: []models.PubkeySlot{pk33(0x01)}}
	raw := Serialize(meta)
	raw[len(raw)-1] = 0xac // OP_CHECKSIG, not OP_CHECKMULTISIG
	if _, err := Parse(raw); err != ErrNoCheckMultisig {
		t.Fatalf("Parse(no checkmultisig) = %v, want ErrNoCheckMultisig", err)
	}
}
