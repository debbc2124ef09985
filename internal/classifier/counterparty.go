package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

var counterpartySignature = []byte("CNTRPRTY")

var counterpartyVariant = map[int]string{
	0: "CounterpartyTransfer", 2: "CounterpartyTransfer", 3: "CounterpartyTransfer", 4: "CounterpartyTransfer", 50: "CounterpartyTransfer",
	20: "CounterpartyIssuance", 21: "CounterpartyIssuance", 22: "CounterpartyIssuance", 90: "CounterpartyIssuance", 91: "CounterpartyIssuance",
	60: "CounterpartyDestruction", 110: "CounterpartyDestruction",
	10: "CounterpartyDEX", 11: "CounterpartyDEX", 12: "CounterpartyDEX", 70: "CounterpartyDEX",
	30:  "CounterpartyOracle",
	40: "CounterpartyGaming", 80: "CounterpartyGaming", 81: "CounterpartyGaming",
	100: "CounterpartyUtility", 101: "CounterpartyUtility", 102: "CounterpartyUtility",
}

func isSupportedCounterpartyShape(m, n int, tier2 bool) bool {
	switch {
	case m == 1 && (n == 2 || n == 3):
		return true
	case tier2 && ((m == 2 && n == 2) || (m == 2 && n == 3) || (m == 3 && n == 3)):
		return true
	default:
		return false
	}
}

// DetectCounterparty implements spec.md §4.3.4. Runs only after
// DetectStamps has failed to match, satisfying the Stamps-nested-in-
// Counterparty precedence rule.
//
// Open question resolution (spec.md §9): the documented tier-2 shape
// "3-of-2" is not well-formed (M > N) and is never accepted; M > N is
// rejected by the Script Parser itself (ErrMGreaterThanN), so no
// explicit guard is needed here.
func DetectCounterparty(tx *models.EnrichedTransaction, outputs []models.Output, tier2Enabled bool) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	shapeOK := false
	for _, o := range p2ms {
		if isSupportedCounterpartyShape(o.Multisig.RequiredSigs, o.Multisig.TotalPubkeys, tier2Enabled) {
			shapeOK = true
			break
		}
	}
	if !shapeOK || tx.FirstInputTxid == "" {
		return nil, false
	}

	key, err := decodeHexTxid(tx.FirstInputTxid)
	if err != nil {
		return nil, false
	}
	payload := concatPubkeyDataBytes(p2ms)
	clear, err := decode.ARC4(payload, key)
	if err != nil || len(clear) < 2 {
		return nil, false
	}

	sigOffset := -1
	if bytes.HasPrefix(clear, counterpartySignature) {
		sigOffset = 0
	} else if len(clear) >= 9 && bytes.Equal(clear[1:9], counterpartySignature) {
		sigOffset = 1
	}
	if sigOffset == -1 {
		return nil, false
	}

	msgTypeOffset := sigOffset + 8
	if msgTypeOffset >= len(clear) {
		return nil, false
	}
	msgType := int(clear[msgTypeOffset])
	variant, ok := counterpartyVariant[msgType]
	if !ok {
		return nil, false
	}

	return &models.Classification{
		Protocol:               models.ProtocolCounterparty,
		Variant:                variant,
		ProtocolSignatureFound: true,
		AdditionalMetadata:     map[string]any{"numeric_type": msgType},
	}, true
}
