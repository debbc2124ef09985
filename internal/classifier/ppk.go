package classifier

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

var ppkSlot2Pubkey, _ = hex.DecodeString("0320a0de360cc2ae8672db7d557086a4e7c8eca062c0a5a4ba9922dee0aacf3e12")

// DetectPPk implements spec.md §4.3.6. Evidence: the fixed PPk pubkey
// occupies slot 2 of a P2MS output.
//
// Open question (spec.md §9): the `RT` TLV's length byte must equal
// 0x20 — a false-positive filter inferred from the corpus rather than
// derived from a format spec. Kept as a literal constant here;
// reconsider if new PPk payload shapes surface.
func DetectPPk(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	found := false
	for _, o := range p2ms {
		if pk := pubkeySlotBytes(o.Multisig.Pubkeys, 2); bytes.Equal(pk, ppkSlot2Pubkey) {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	combined := concatPubkeyDataBytes(p2ms)
	for _, or := range tx.OpReturnOutputs {
		combined = append(combined, or.Payload...)
	}

	variant, contentType := ppkVariant(combined)
	return &models.Classification{
		Protocol:               models.ProtocolPPk,
		Variant:                variant,
		ContentType:            contentType,
		ProtocolSignatureFound: true,
		DecodedPayload:         combined,
	}, true
}

func ppkVariant(data []byte) (variant, contentType string) {
	if len(data) >= 3 && data[0] == 'R' && data[1] == 'T' && data[2] == 0x20 {
		body := data[3:]
		if decode.JSONTopLevelKeys(body) != nil {
			return "PPkProfile", "application/json"
		}
	}
	if isQuotedDecimal(data) {
		return "PPkRegistration", "text/plain"
	}
	if bytes.Contains(data, []byte("PPk")) || bytes.Contains(data, []byte("ppk")) || decode.PrintableASCIIRatio(data) >= 0.8 {
		return "PPkMessage", "text/plain"
	}
	return "PPkUnknown", "application/octet-stream"
}

func isQuotedDecimal(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) < 3 || trimmed[0] != '"' {
		return false
	}
	end := bytes.IndexByte(trimmed[1:], '"')
	if end < 0 {
		return false
	}
	inner := trimmed[1 : 1+end]
	if len(inner) == 0 {
		return false
	}
	_, err := strconv.ParseInt(string(inner), 10, 64)
	return err == nil
}
