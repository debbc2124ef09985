package classifier

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

const exodusAddress = "1EXoDusjGwvnjZUyKkxZ4UHEf77z6A5S4P"

var omniMessageTypeVariant = map[int]string{
	0: "OmniTransfer", 2: "OmniTransfer", 4: "OmniTransfer", 5: "OmniTransfer",
	3: "OmniDistribution",
	56: "OmniDestruction",
	20: "OmniDEX", 21: "OmniDEX", 22: "OmniDEX", 23: "OmniDEX", 24: "OmniDEX", 25: "OmniDEX", 26: "OmniDEX", 27: "OmniDEX", 28: "OmniDEX",
	70: "OmniAdministration", 71: "OmniAdministration", 72: "OmniAdministration", 185: "OmniAdministration", 186: "OmniAdministration",
	31: "OmniUtility", 200: "OmniUtility",
}

func omniIssuanceType(t int) bool {
	return t >= 50 && t <= 55 && t != 53
}

// DetectOmni implements spec.md §4.3.1.
func DetectOmni(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	if !hasAddress(tx.ExodusOutputs, exodusAddress) && len(tx.ExodusOutputs) == 0 {
		return nil, false
	}

	pkHash := senderPubKeyHash(tx.FirstInputAddress)
	p2ms := p2msOnly(outputs)

	for _, o := range p2ms {
		if o.Multisig == nil || len(o.Multisig.Pubkeys) < 3 {
			continue
		}
		payload := append(append([]byte{}, o.Multisig.Pubkeys[1].Bytes...), o.Multisig.Pubkeys[2].Bytes...)
		if pkHash == nil {
			continue
		}
		clear := decode.DeobfuscateOmniPayload(payload, pkHash, 1)
		if len(clear) < 4 {
			continue
		}
		version := int(clear[0])
		msgType := int(clear[3])
		_ = version

		var variant string
		switch {
		case omniIssuanceType(msgType):
			variant = "OmniIssuance"
		case msgType == 53:
			variant = "OmniAdministration"
		default:
			if v, ok := omniMessageTypeVariant[msgType]; ok {
				variant = v
			}
		}
		if variant == "" {
			continue
		}

		return &models.Classification{
			Protocol:               models.ProtocolOmniLayer,
			Variant:                variant,
			ProtocolSignatureFound: true,
			AdditionalMetadata:     map[string]any{"omni_version": version, "omni_message_type": msgType},
		}, true
	}

	return &models.Classification{
		Protocol: models.ProtocolOmniLayer,
		Variant:  "OmniFailedDeobfuscation",
	}, true
}

func hasAddress(outs []models.AddressOutput, addr string) bool {
	for _, o := range outs {
		if o.Address == addr {
			return true
		}
	}
	return false
}

// senderPubKeyHash decodes a base58check P2PKH address into its
// 20-byte hash160, the keystream seed Omni's Class C obfuscation uses.
// Returns nil if addr isn't a decodable P2PKH address (e.g. empty,
// unresolved, or a script address) — callers treat that as
// "deobfuscation not possible" rather than an error.
func senderPubKeyHash(addr string) []byte {
	if addr == "" {
		return nil
	}
	a, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
	if err != nil {
		return nil
	}
	pkh, ok := a.(*btcutil.AddressPubKeyHash)
	if !ok {
		return nil
	}
	return pkh.Hash160()[:]
}
