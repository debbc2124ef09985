package classifier

import (
	"encoding/hex"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// decodeHexTxid decodes a 64-character hex txid into its raw 32-byte
// form, the ARC4 key material Stamps and Counterparty use (spec.md
// §4.3.3, §4.3.4, glossary "First-input txid").
func decodeHexTxid(txid string) ([]byte, error) {
	return hex.DecodeString(txid)
}

// p2msOnly filters outputs down to those the Script Parser recognized
// as multisig; non-P2MS rows (kept by Stage 1 for completeness) never
// reach a detector.
func p2msOnly(outputs []models.Output) []models.Output {
	out := make([]models.Output, 0, len(outputs))
	for _, o := range outputs {
		if o.ScriptType == models.ScriptTypeMultisig && o.Multisig != nil {
			out = append(out, o)
		}
	}
	return out
}

// concatRawPubkeys concatenates the full raw bytes of one pubkey slot
// index across every P2MS output, in vout order. Chancecoin frames its
// signature this way: the compressed-key prefix byte is repurposed as
// a data-length byte rather than 0x02/0x03.
func concatRawPubkeys(outputs []models.Output, slot int) []byte {
	var out []byte
	for _, o := range outputs {
		if o.Multisig == nil || slot >= len(o.Multisig.Pubkeys) {
			continue
		}
		out = append(out, o.Multisig.Pubkeys[slot].Bytes...)
	}
	return out
}

// concatPubkeyDataBytes concatenates bytes [1..32] of every pubkey
// slot across every P2MS output, in vout order — the 32-byte data
// window Stamps, Counterparty, PPk, and DataStorage decode (the key's
// prefix byte at index 0 carries no payload and is dropped).
func concatPubkeyDataBytes(outputs []models.Output) []byte {
	var out []byte
	for _, o := range outputs {
		if o.Multisig == nil {
			continue
		}
		for _, pk := range o.Multisig.Pubkeys {
			if len(pk.Bytes) >= 33 {
				out = append(out, pk.Bytes[1:33]...)
			}
		}
	}
	return out
}

// fillDefaults applies the transaction-level classification to every
// P2MS output that a detector did not already give a per-output
// result, and layers in the spendability evaluation every output gets
// regardless of which detector matched (spec.md §4.4, §4.7).
func fillDefaults(c *models.Classification, outputs []models.Output) map[uint32]models.OutputResult {
	results := make(map[uint32]models.OutputResult, len(outputs))
	for _, o := range outputs {
		r := models.OutputResult{Variant: c.Variant, ContentType: c.ContentType}
		if existing, ok := c.Outputs[o.Vout]; ok {
			r = existing
		}
		sp := evaluateSpendability(o)
		r.IsSpendable = sp.IsSpendable
		r.SpendabilityTag = sp.SpendabilityTag
		r.RealPubkeyCount = sp.RealPubkeyCount
		r.BurnKeyCount = sp.BurnKeyCount
		r.DataKeyCount = sp.DataKeyCount
		results[o.Vout] = r
	}
	return results
}

// allValidKeys reports whether every pubkey in every output passes EC
// validation (ignoring burn-pattern/null classification — a pure
// "is this a real point" check used by LikelyDataStorage and
// LikelyLegitimateMultisig).
func allValidKeys(outputs []models.Output) bool {
	for _, o := range outputs {
		if countKeys(o).AnyInvalid {
			return false
		}
	}
	return true
}

func anyNullKey(outputs []models.Output) bool {
	for _, o := range outputs {
		if countKeys(o).HasNull {
			return true
		}
	}
	return false
}

func anyDuplicateKey(outputs []models.Output) bool {
	for _, o := range outputs {
		if countKeys(o).Duplicate {
			return true
		}
	}
	return false
}

func totalRealKeys(outputs []models.Output) int {
	n := 0
	for _, o := range outputs {
		n += countKeys(o).Real
	}
	return n
}
