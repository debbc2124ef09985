package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// stampsBurnKeyPrefixes are the distinguished 22/33/0202/0303-prefixed
// padding patterns Stamps uses to fill unused multisig slots (spec.md
// §4.3.3 evidence (a)). They're recognized by prefix, not exact match:
// the corpus's Stamps encoder pads the remainder deterministically but
// the exact trailing bytes vary by implementation version.
var stampsBurnKeyPrefixes = [][]byte{
	{0x02, 0x02}, {0x03, 0x03}, {0x22}, {0x33},
}

func isStampsBurnKey(pk []byte) bool {
	for _, prefix := range stampsBurnKeyPrefixes {
		if bytes.HasPrefix(pk, prefix) {
			return true
		}
	}
	return false
}

func stampsHasBurnPattern(outputs []models.Output) bool {
	for _, o := range outputs {
		if o.Multisig == nil {
			continue
		}
		for _, pk := range o.Multisig.Pubkeys {
			if isStampsBurnKey(pk.Bytes) {
				return true
			}
		}
	}
	return false
}

// DetectStamps implements spec.md §4.3.3. Must run before
// DetectCounterparty: a Stamps payload can be nested inside an
// otherwise-valid Counterparty envelope, and Counterparty's own
// signature check would otherwise match first.
//
// requireDecodedSignature is the operator's
// STAMPS_REQUIRE_DECODED_SIGNATURE policy knob: when set, a burn
// pattern alone (no "STAMP:" signature surviving ARC4 decryption) is
// not enough evidence and the detector declines the match, leaving it
// to the detectors after it in the cascade instead of classifying as
// StampsUnknown.
func DetectStamps(tx *models.EnrichedTransaction, outputs []models.Output, requireDecodedSignature bool) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	is1of3 := false
	for _, o := range p2ms {
		if o.Multisig.RequiredSigs == 1 && o.Multisig.TotalPubkeys == 3 {
			is1of3 = true
			break
		}
	}
	if !is1of3 {
		return nil, false
	}

	burnPresent := stampsHasBurnPattern(p2ms)

	var decrypted []byte
	if tx.FirstInputTxid != "" {
		key, err := decodeHexTxid(tx.FirstInputTxid)
		if err == nil {
			payload := concatPubkeyDataBytes(p2ms)
			if clear, err := decode.ARC4(payload, key); err == nil {
				decrypted = clear
			}
		}
	}

	signatureFound := hasStampSignature(decrypted)
	if !burnPresent && !signatureFound {
		return nil, false
	}
	if requireDecodedSignature && !signatureFound {
		return nil, false
	}

	transport := models.TransportPure
	body := decrypted
	if signatureFound {
		body = stripStampSignature(decrypted)
		if bytes.Contains(decrypted[:min(len(decrypted), 16)], []byte("CNTRPRTY")) {
			transport = models.TransportCounterparty
		}
	}

	variant, contentType := stampsVariant(body, burnPresent, signatureFound)

	return &models.Classification{
		Protocol:               models.ProtocolBitcoinStamps,
		Variant:                variant,
		ContentType:            contentType,
		TransportProtocol:      transport,
		ProtocolSignatureFound: signatureFound,
		DecodedPayload:         body,
	}, true
}

func hasStampSignature(decrypted []byte) bool {
	return bytes.HasPrefix(decrypted, []byte("STAMP:")) || bytes.HasPrefix(decrypted, []byte("stamp:"))
}

func stripStampSignature(decrypted []byte) []byte {
	if len(decrypted) >= 6 {
		return decrypted[6:]
	}
	return decrypted
}

// stampsVariant applies the priority order of spec.md §4.3.3.
func stampsVariant(body []byte, burnPresent, signatureFound bool) (variant, contentType string) {
	if kind := decode.SniffCompression(body); kind != decode.KindNone {
		return "StampsCompressed", decode.ContentType(kind)
	}
	if kind := decode.SniffImage(body); kind != decode.KindNone {
		return "StampsClassic", decode.ContentType(kind)
	}
	if keys := decode.JSONTopLevelKeys(body); keys != nil {
		for _, k := range keys {
			switch k {
			case "p", "op", "tick":
				return "SRC-20", "application/json"
			}
		}
		return "SRC-721", "application/json"
	}
	if decode.HTMLMarkers(body) {
		return "StampsHTML", "text/html"
	}
	if !signatureFound && burnPresent {
		return "StampsUnknown", "application/octet-stream"
	}
	return "StampsData", "application/octet-stream"
}
