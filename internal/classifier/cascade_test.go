package classifier

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// generatorPubkey returns the compressed encoding of k*G, a guaranteed
// valid secp256k1 point for any k > 0.
func generatorPubkey(t *testing.T, k int64) []byte {
	t.Helper()
	var scalar secp256k1.ModNScalar
	scalar.SetInt(uint32(k))
	var point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &point)
	point.ToAffine()
	pub := secp256k1.NewPublicKey(&point.X, &point.Y)
	return pub.SerializeCompressed()
}

func p2msOutput(vout uint32, amount int64, m, n int, pubkeys [][]byte) models.Output {
	slots := make([]models.PubkeySlot, len(pubkeys))
	for i, b := range pubkeys {
		slots[i] = models.PubkeySlot{Index: i, Bytes: b}
	}
	return models.Output{
		Vout:       vout,
		Amount:     amount,
		ScriptType: models.ScriptTypeMultisig,
		Multisig:   &models.MultisigMeta{RequiredSigs: m, TotalPubkeys: n, Pubkeys: slots},
	}
}

// dataPubkey builds a well-formed-length pubkey slot (33 bytes) whose
// payload window (bytes 1..32) is exactly data, left-padded/truncated
// as needed by the caller. prefix is the raw byte 0 (repurposed as a
// length marker by several detectors).
func dataPubkey(prefix byte, data []byte) []byte {
	b := make([]byte, 33)
	b[0] = prefix
	copy(b[1:], data)
	return b
}

// Scenario 1 (spec §8): Chancecoin.
func TestDetectChancecoin_Scenario(t *testing.T) {
	slot1 := dataPubkey(0x20, append([]byte("CHANCECO"), 0x00))
	out := p2msOutput(0, 50000, 1, 2, [][]byte{dataPubkey(0x02, nil), slot1})

	tx := &models.EnrichedTransaction{Txid: "deadbeef"}
	c, ok := DetectChancecoin(tx, []models.Output{out})
	if !ok {
		t.Fatal("DetectChancecoin did not match the CHANCECO scenario")
	}
	if c.Protocol != models.ProtocolChancecoin || c.Variant != "ChancecoinSend" {
		t.Fatalf("got protocol=%s variant=%s, want Chancecoin/ChancecoinSend", c.Protocol, c.Variant)
	}
}

// Scenario 2 (spec §8): Bitcoin Stamps, a 1-of-3 whose ARC4-decrypted
// payload begins "stamp:" followed by PNG magic.
func TestDetectStamps_Scenario(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i*7 + 1)
	}
	firstInputTxid := hex.EncodeToString(key)

	plaintext := make([]byte, 96) // 3 slots * 32-byte data window
	copy(plaintext, "stamp:")
	copy(plaintext[6:], []byte{0x89, 0x50, 0x4e, 0x47})

	raw, err := decode.ARC4(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}

	pubkeys := [][]byte{
		dataPubkey(0x02, raw[0:32]),
		dataPubkey(0x02, raw[32:64]),
		dataPubkey(0x02, raw[64:96]),
	}
	out := p2msOutput(0, 10000, 1, 3, pubkeys)
	tx := &models.EnrichedTransaction{Txid: "x", FirstInputTxid: firstInputTxid}

	c, ok := DetectStamps(tx, []models.Output{out}, false)
	if !ok {
		t.Fatal("DetectStamps did not match the stamp:+PNG scenario")
	}
	if c.Protocol != models.ProtocolBitcoinStamps || c.Variant != "StampsClassic" {
		t.Fatalf("got protocol=%s variant=%s, want BitcoinStamps/StampsClassic", c.Protocol, c.Variant)
	}
	if c.ContentType != "image/png" {
		t.Fatalf("content_type = %q, want image/png", c.ContentType)
	}
	if c.TransportProtocol != models.TransportPure {
		t.Fatalf("transport = %q, want Pure", c.TransportProtocol)
	}
}

// Scenario 3 (spec §8): Counterparty, decrypted payload "CNTRPRTY" + message-type byte 20.
func TestDetectCounterparty_Scenario(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i*11 + 3)
	}
	firstInputTxid := hex.EncodeToString(key)

	plaintext := make([]byte, 96)
	copy(plaintext, "CNTRPRTY")
	plaintext[8] = 20

	raw, err := decode.ARC4(plaintext, key)
	if err != nil {
		t.Fatal(err)
	}

	pubkeys := [][]byte{
		dataPubkey(0x02, raw[0:32]),
		dataPubkey(0x02, raw[32:64]),
		dataPubkey(0x02, raw[64:96]),
	}
	out := p2msOutput(0, 10000, 1, 3, pubkeys)
	tx := &models.EnrichedTransaction{Txid: "x", FirstInputTxid: firstInputTxid}

	c, ok := DetectCounterparty(tx, []models.Output{out}, false)
	if !ok {
		t.Fatal("DetectCounterparty did not match the CNTRPRTY+type20 scenario")
	}
	if c.Protocol != models.ProtocolCounterparty || c.Variant != "CounterpartyIssuance" {
		t.Fatalf("got protocol=%s variant=%s, want Counterparty/CounterpartyIssuance", c.Protocol, c.Variant)
	}
	if c.AdditionalMetadata["numeric_type"] != 20 {
		t.Fatalf("numeric_type = %v, want 20", c.AdditionalMetadata["numeric_type"])
	}
}

// Scenario 4 (spec §8): Omni Layer, Exodus-adjacent output whose P2MS
// slots 1..2 deobfuscate (SHA-256 keystream) to header 00 00 00 00.
func TestDetectOmni_Scenario(t *testing.T) {
	senderAddr := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT" // well-known P2PKH address
	pkHash := senderPubKeyHash(senderAddr)
	if pkHash == nil {
		t.Fatal("test setup: senderPubKeyHash failed to decode a known-good address")
	}

	// DetectOmni concatenates the full 33-byte slot payload (prefix
	// byte included) for slots 1 and 2, so the header to obfuscate is
	// 66 bytes, not 64.
	header := make([]byte, 66) // header already all-zero: version=0, msgType=clear[3]=0
	obfuscated := decode.DeobfuscateOmniPayload(header, pkHash, 1)

	pubkeys := [][]byte{
		dataPubkey(0x02, nil),
		obfuscated[0:33],
		obfuscated[33:66],
	}
	out := p2msOutput(0, 10000, 1, 3, pubkeys)
	tx := &models.EnrichedTransaction{
		Txid:              "x",
		FirstInputAddress: senderAddr,
		ExodusOutputs:     []models.AddressOutput{{Vout: 1, Address: exodusAddress}},
	}

	c, ok := DetectOmni(tx, []models.Output{out})
	if !ok {
		t.Fatal("DetectOmni did not match the all-zero header scenario")
	}
	if c.Protocol != models.ProtocolOmniLayer || c.Variant != "OmniTransfer" {
		t.Fatalf("got protocol=%s variant=%s, want OmniLayer/OmniTransfer", c.Protocol, c.Variant)
	}
}

// Scenario 5 (spec §8): six valid-key P2MS outputs, no signatures -> LikelyDataStorage.HighOutputCount.
func TestClassify_Scenario_HighOutputCount(t *testing.T) {
	var outputs []models.Output
	for i := int64(0); i < 6; i++ {
		outputs = append(outputs, p2msOutput(uint32(i), 1000, 1, 1, [][]byte{generatorPubkey(t, i+1)}))
	}
	tx := &models.EnrichedTransaction{Txid: "x"}

	cascade := BuildCascade(false, false)
	c := Classify(cascade, tx, outputs)
	if c.Protocol != models.ProtocolLikelyDataStorage || c.Variant != "HighOutputCount" {
		t.Fatalf("got protocol=%s variant=%s, want LikelyDataStorage/HighOutputCount", c.Protocol, c.Variant)
	}
}

// Scenario 6 (spec §8): two valid-key P2MS outputs, no signatures,
// non-dust values -> LikelyLegitimateMultisig.LegitimateMultisig, spendable.
func TestClassify_Scenario_LegitimateMultisig(t *testing.T) {
	outputs := []models.Output{
		p2msOutput(0, 50000, 1, 1, [][]byte{generatorPubkey(t, 1)}),
		p2msOutput(1, 100000, 1, 1, [][]byte{generatorPubkey(t, 2)}),
	}
	tx := &models.EnrichedTransaction{Txid: "x"}

	cascade := BuildCascade(false, false)
	c := Classify(cascade, tx, outputs)
	if c.Protocol != models.ProtocolLikelyLegitMultisig || c.Variant != "LegitimateMultisig" {
		t.Fatalf("got protocol=%s variant=%s, want LikelyLegitimateMultisig/LegitimateMultisig", c.Protocol, c.Variant)
	}

	results := fillDefaults(c, outputs)
	for _, o := range outputs {
		r := results[o.Vout]
		if r.IsSpendable == nil || !*r.IsSpendable {
			t.Fatalf("output %d: spendable = %v, want true", o.Vout, r.IsSpendable)
		}
	}
}
