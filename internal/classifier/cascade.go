// Package classifier is the Classifier Core: an ordered cascade of
// protocol detectors over a transaction's P2MS outputs, plus the
// per-output spendability evaluation every detector shares.
//
// Grounded on the teacher's internal/heuristics package in spirit
// (pure functions over a transaction's data with no shared state) but
// restructured as an ordered list of detectors rather than the
// teacher's single heuristic-score function, per spec.md §9's explicit
// instruction to "express it as a list".
package classifier

import "github.com/rawblock/p2ms-forensics/pkg/models"

// Detector is a pure function of a transaction's enriched metadata and
// its P2MS outputs. It returns (nil, false) for "no match" — never an
// error; absence of evidence is not a failure (spec.md §7, "Decode").
type Detector func(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool)

// BuildCascade returns the fixed, load-bearing detector order from
// spec.md §4.3, configured with the operator's tier-2 Counterparty
// opt-in. Reordering this slice changes classification results; two
// orderings are hard correctness properties, not style choices:
// Stamps must precede Counterparty (a Stamps payload can be nested
// inside an otherwise-valid Counterparty envelope), and
// OpReturnSignalled must precede DataStorage (the latter's generic
// sniffing would otherwise swallow specific OP_RETURN protocols).
func BuildCascade(counterpartyTier2, stampsRequireDecodedSignature bool) []Detector {
	return []Detector{
		DetectOmni,
		DetectChancecoin,
		func(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
			return DetectStamps(tx, outputs, stampsRequireDecodedSignature)
		},
		func(tx *models.EnrichedTransaction, outputs []models.Output) (*models.Classification, bool) {
			return DetectCounterparty(tx, outputs, counterpartyTier2)
		},
		DetectAsciiIdentifier,
		DetectPPk,
		DetectWikiLeaksCablegate,
		DetectOpReturnSignalled,
		DetectDataStorage,
		DetectLikelyDataStorage,
		DetectLikelyLegitimateMultisig,
		DetectUnknown,
	}
}

// Classify runs the cascade and returns the first match. DetectUnknown
// always matches, so Classify never returns nil for a well-formed
// call with at least one P2MS output (spec.md §8 invariant 4,
// "classification is total").
func Classify(cascade []Detector, tx *models.EnrichedTransaction, outputs []models.Output) *models.Classification {
	for _, detect := range cascade {
		if c, ok := detect(tx, outputs); ok {
			return c
		}
	}
	return nil // unreachable: DetectUnknown always matches
}
