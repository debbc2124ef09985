package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

var protocol47930Marker = []byte{0xbb, 0x3a}

func is2of2(outputs []models.Output) bool {
	for _, o := range outputs {
		if o.Multisig != nil && o.Multisig.RequiredSigs == 2 && o.Multisig.TotalPubkeys == 2 {
			return true
		}
	}
	return false
}

// DetectOpReturnSignalled implements spec.md §4.3.8, in its documented
// sub-order: Protocol47930, then CLIPPERZ, then GenericASCII. Must
// precede DetectDataStorage so these specific protocols aren't
// swallowed by generic sniffing.
func DetectOpReturnSignalled(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	twoOfTwo := is2of2(p2ms)

	for _, or := range tx.OpReturnOutputs {
		if twoOfTwo && bytes.HasPrefix(or.Payload, protocol47930Marker) {
			return &models.Classification{
				Protocol:               models.ProtocolOpReturnSignalled,
				Variant:                "Protocol47930",
				ProtocolSignatureFound: true,
			}, true
		}
		if twoOfTwo && (bytes.Contains(or.Payload, []byte("CLIPPERZ REG")) || bytes.Contains(or.Payload, []byte("CLIPPERZ 1.0 REG"))) {
			return &models.Classification{
				Protocol:               models.ProtocolOpReturnSignalled,
				Variant:                "CLIPPERZ",
				ProtocolSignatureFound: true,
			}, true
		}
	}

	for _, or := range tx.OpReturnOutputs {
		if isGenericASCII(or.Payload) {
			return &models.Classification{
				Protocol: models.ProtocolOpReturnSignalled,
				Variant:  "GenericASCII",
			}, true
		}
	}

	return nil, false
}

func isGenericASCII(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	if len(payload) <= 40 && decode.PrintableASCIIRatio(payload) >= 0.8 {
		return true
	}
	return decode.LongestPrintableRun(payload) >= 5
}
