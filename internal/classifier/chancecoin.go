package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

var chancecoinSignature = []byte("CHANCECO")

var chancecoinVariant = map[byte]string{
	0: "ChancecoinSend", 10: "ChancecoinOrder", 11: "ChancecoinBTCPay",
	14: "ChancecoinRoll", 40: "ChancecoinBet", 41: "ChancecoinBet", 70: "ChancecoinCancel",
}

// DetectChancecoin implements spec.md §4.3.2: the signature occupies
// pubkey slot 1 of a 1-of-2 P2MS output, offset by one length byte.
func DetectChancecoin(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	for _, o := range p2msOnly(outputs) {
		if o.Multisig.RequiredSigs != 1 || o.Multisig.TotalPubkeys != 2 {
			continue
		}
		if len(o.Multisig.Pubkeys) < 2 {
			continue
		}
		slot1 := o.Multisig.Pubkeys[1].Bytes
		if len(slot1) < 9 || !bytes.Equal(slot1[1:9], chancecoinSignature) {
			continue
		}

		msgType := byte(0)
		if len(slot1) > 9 {
			msgType = slot1[9]
		}
		variant, ok := chancecoinVariant[msgType]
		if !ok {
			variant = "ChancecoinUnknown"
		}

		return &models.Classification{
			Protocol:               models.ProtocolChancecoin,
			Variant:                variant,
			ProtocolSignatureFound: true,
			AdditionalMetadata:     map[string]any{"chancecoin_message_type": int(msgType)},
		}, true
	}
	return nil, false
}
