package classifier

import (
	"bytes"

	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// DetectDataStorage implements spec.md §4.3.9: generic binary/text
// sniffing over the raw (undecrypted, unobfuscated) concatenated P2MS
// pubkey payload. Runs after every protocol-specific detector so it
// only catches what they didn't.
func DetectDataStorage(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
	p2ms := p2msOnly(outputs)
	if len(p2ms) == 0 {
		return nil, false
	}
	payload := concatPubkeyDataBytes(p2ms)

	if kind := decode.SniffArchive(payload); kind != decode.KindNone {
		return dataStorageMatch("EmbeddedData", decode.ContentType(kind), payload), true
	}
	if kind := decode.SniffCompression(payload); kind != decode.KindNone {
		return dataStorageMatch("EmbeddedData", decode.ContentType(kind), payload), true
	}
	if decode.SniffBzip2(payload) {
		return dataStorageMatch("EmbeddedData", "application/x-bzip2", payload), true
	}
	if kind := decode.SniffImage(payload); kind != decode.KindNone {
		return dataStorageMatch("EmbeddedData", decode.ContentType(kind), payload), true
	}
	if decode.IsAllFF(payload) {
		return dataStorageMatch("ProofOfBurn", "application/octet-stream", payload), true
	}
	if looksLikeFileMetadata(payload) {
		return dataStorageMatch("FileMetadata", "text/plain", payload), true
	}
	if len(payload) >= 4 && decode.PrintableASCIIRatio(payload) >= 0.5 {
		return dataStorageMatch("Generic", "text/plain", payload), true
	}
	if decode.IsAllZero(payload) {
		return dataStorageMatch("NullData", "application/octet-stream", payload), true
	}
	return nil, false
}

func dataStorageMatch(variant, contentType string, payload []byte) *models.Classification {
	return &models.Classification{
		Protocol:       models.ProtocolDataStorage,
		Variant:        variant,
		ContentType:    contentType,
		DecodedPayload: payload,
	}
}

// looksLikeFileMetadata recognizes URLs, file extensions, and keyword
// markers often embedded as file metadata rather than the file itself.
func looksLikeFileMetadata(payload []byte) bool {
	for _, marker := range [][]byte{
		[]byte("http://"), []byte("https://"), []byte(".jpg"), []byte(".png"),
		[]byte(".pdf"), []byte(".zip"), []byte("filename"), []byte("title:"),
	} {
		if bytes.Contains(payload, marker) {
			return true
		}
	}
	return false
}
