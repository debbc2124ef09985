package classifier

import "github.com/rawblock/p2ms-forensics/pkg/models"

// DetectUnknown implements spec.md §4.3.12: the fallback that
// guarantees classification is total (spec.md §8 invariant 4). Always
// matches.
func DetectUnknown(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	return &models.Classification{
		Protocol: models.ProtocolUnknown,
	}, true
}
