package classifier

import (
	"github.com/rawblock/p2ms-forensics/internal/burnkey"
	"github.com/rawblock/p2ms-forensics/internal/ecvalidate"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// keyCounts tallies real/burn/data keys across an output's pubkey
// slots, and evaluateSpendability applies spec.md §4.4: spendable iff
// real_keys >= M, with null-padded slots never counting toward M.
type keyCounts struct {
	Real int
	Burn int
	Data int
	// AnyInvalid reports whether at least one pubkey failed EC
	// validation outright (neither a recognized burn pattern nor null
	// padding) — the evidence LikelyDataStorage.InvalidECPoint keys on.
	AnyInvalid bool
	AllValid   bool
	HasNull    bool
	Duplicate  bool
}

func countKeys(out models.Output) keyCounts {
	var kc keyCounts
	if out.Multisig == nil {
		return kc
	}
	seen := make(map[string]bool, len(out.Multisig.Pubkeys))
	kc.AllValid = true
	for _, pk := range out.Multisig.Pubkeys {
		key := string(pk.Bytes)
		if seen[key] {
			kc.Duplicate = true
		}
		seen[key] = true

		if _, burnt := burnkey.Detect(pk.Bytes); burnt {
			kc.Burn++
			kc.AllValid = false
			continue
		}
		switch ecvalidate.Classify(pk.Bytes) {
		case ecvalidate.KindRealKey:
			kc.Real++
		case ecvalidate.KindNullKey:
			kc.HasNull = true
			kc.AllValid = false
		case ecvalidate.KindDataKey:
			kc.Data++
			kc.AnyInvalid = true
			kc.AllValid = false
		}
	}
	return kc
}

// evaluateSpendability produces the OutputResult fields spec.md §4.4
// defines, independent of which detector matched.
func evaluateSpendability(out models.Output) models.OutputResult {
	if out.Multisig == nil {
		return models.OutputResult{SpendabilityTag: models.ReasonNotEvaluated}
	}
	kc := countKeys(out)
	spendable := kc.Real >= out.Multisig.RequiredSigs

	var reason models.SpendabilityReason
	switch {
	case spendable:
		reason = models.ReasonSufficientRealKeys
	case kc.Burn > 0:
		reason = models.ReasonBurnKeysBlock
	case kc.AnyInvalid:
		reason = models.ReasonInvalidECPoint
	case kc.Real == 0:
		reason = models.ReasonNullKeysOnly
	default:
		reason = models.ReasonBurnKeysBlock
	}

	return models.OutputResult{
		IsSpendable:     &spendable,
		SpendabilityTag: reason,
		RealPubkeyCount: kc.Real,
		BurnKeyCount:    kc.Burn,
		DataKeyCount:    kc.Data,
	}
}
