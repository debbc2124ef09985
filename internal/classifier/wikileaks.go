package classifier

import "github.com/rawblock/p2ms-forensics/pkg/models"

const wikileaksAddress = "1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v"

// DetectWikiLeaksCablegate implements spec.md §4.3.7.
func DetectWikiLeaksCablegate(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	if !hasAddress(tx.WikiLeaksOutputs, wikileaksAddress) {
		return nil, false
	}
	return &models.Classification{
		Protocol:               models.ProtocolDataStorage,
		Variant:                "WikiLeaksCablegate",
		ProtocolSignatureFound: true,
	}, true
}
