package classifier

import "github.com/rawblock/p2ms-forensics/pkg/models"

const dustThresholdSats = 1000

// DetectLikelyDataStorage implements spec.md §4.3.10, in its
// documented evidence order: an invalid EC point anywhere outranks the
// count/value heuristics, which only apply once every key validates.
func DetectLikelyDataStorage(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	if len(p2ms) == 0 {
		return nil, false
	}

	if !allValidKeys(p2ms) {
		return &models.Classification{
			Protocol: models.ProtocolLikelyDataStorage,
			Variant:  "InvalidECPoint",
		}, true
	}

	if len(p2ms) >= 5 {
		return &models.Classification{
			Protocol: models.ProtocolLikelyDataStorage,
			Variant:  "HighOutputCount",
		}, true
	}

	allDust := true
	for _, o := range p2ms {
		if o.Amount > dustThresholdSats {
			allDust = false
			break
		}
	}
	if allDust {
		return &models.Classification{
			Protocol: models.ProtocolLikelyDataStorage,
			Variant:  "DustAmount",
		}, true
	}

	return nil, false
}
