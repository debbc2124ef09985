package classifier

import "github.com/rawblock/p2ms-forensics/pkg/models"

// DetectLikelyLegitimateMultisig implements spec.md §4.3.11: every
// remaining transaction whose pubkeys all validate and which matched
// no signature-bearing detector above.
func DetectLikelyLegitimateMultisig(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	if len(p2ms) == 0 || !allValidKeys(p2ms) {
		return nil, false
	}

	variant := "LegitimateMultisig"
	switch {
	case anyNullKey(p2ms) && totalRealKeys(p2ms) > 0:
		variant = "LegitimateMultisigWithNullKey"
	case anyDuplicateKey(p2ms):
		variant = "LegitimateMultisigDupeKeys"
	}

	return &models.Classification{
		Protocol: models.ProtocolLikelyLegitMultisig,
		Variant:  variant,
	}, true
}
