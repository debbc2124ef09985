package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// allowlistedIdentifiers are recognized anywhere in the first 20 bytes
// of pubkey 0 (spec.md §4.3.5, "allowlisted others").
var allowlistedIdentifiers = []string{"NEWBCOIN", "PRVCY"}

// DetectAsciiIdentifier implements spec.md §4.3.5. Position is strict
// per identifier: TB0001 matches pubkey 0 or 1, TEST01 matches pubkey
// 0 only, METROXMN matches anywhere in pubkey 1, and the allowlist
// matches only the first 20 bytes of pubkey 0.
func DetectAsciiIdentifier(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	for _, o := range p2msOnly(outputs) {
		pks := o.Multisig.Pubkeys
		pk0 := pubkeySlotBytes(pks, 0)
		pk1 := pubkeySlotBytes(pks, 1)

		if matchesAt(pk0, "TB0001", 1) || matchesAt(pk1, "TB0001", 1) {
			return identifierMatch("TB0001"), true
		}
		if matchesAt(pk0, "TEST01", 1) {
			return identifierMatch("TEST01"), true
		}
		if bytes.Contains(pk1, []byte("METROXMN")) {
			return identifierMatch("METROXMN"), true
		}
		if len(pk0) >= 1 {
			window := pk0
			if len(window) > 20 {
				window = window[:20]
			}
			for _, id := range allowlistedIdentifiers {
				if bytes.Contains(window, []byte(id)) {
					return identifierMatch(id), true
				}
			}
		}
	}
	return nil, false
}

func pubkeySlotBytes(pks []models.PubkeySlot, idx int) []byte {
	if idx >= len(pks) {
		return nil
	}
	return pks[idx].Bytes
}

// matchesAt reports whether data has identifier starting at byte offset.
func matchesAt(data []byte, identifier string, offset int) bool {
	if len(data) < offset+len(identifier) {
		return false
	}
	return bytes.Equal(data[offset:offset+len(identifier)], []byte(identifier))
}

func identifierMatch(id string) *models.Classification {
	return &models.Classification{
		Protocol:               models.ProtocolAsciiIdentifier,
		Variant:                id,
		ProtocolSignatureFound: true,
	}
}
