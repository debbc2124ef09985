// Package models holds the shared data types persisted by the Store and
// passed between pipeline stages.
package models

// ScriptType classifies the recognized shape of an output's scriptPubKey.
type ScriptType string

const (
	ScriptTypeMultisig    ScriptType = "multisig"
	ScriptTypeNonstandard ScriptType = "nonstandard"
	ScriptTypeOther       ScriptType = "other"
)

// PubkeySlot is one pubkey occupying one slot of a P2MS script, in
// on-the-wire order.
type PubkeySlot struct {
	Index  int    // 0..N-1
	Bytes  []byte // 33 or 65 raw bytes
	Offset int    // byte offset within the script
}

// MultisigMeta is the metadata blob attached to a multisig Output.
type MultisigMeta struct {
	RequiredSigs int          `json:"requiredSigs"` // M
	TotalPubkeys int          `json:"totalPubkeys"` // N
	Pubkeys      []PubkeySlot `json:"pubkeys"`
}

// Output is a single UTXO-set entry, as populated by Stage 1. No later
// stage updates it: is_spent keeps the 0 written at insert time.
type Output struct {
	Txid        string
	Vout        uint32
	Height      int64
	Amount      int64 // satoshis
	ScriptType  ScriptType
	RawScript   []byte
	IsCoinbase  bool
	IsSpent     bool
	Multisig    *MultisigMeta // non-nil iff ScriptType == multisig
}

// TxInput is one input of an enriched transaction, as retrieved from the node.
type TxInput struct {
	Txid     string
	Vout     uint32
	Value    int64 // satoshis of the spent output; the Node Client leaves it 0
	Address  string // the Node Client leaves it empty
}

// TxOutput is one output of an enriched transaction, as retrieved from the node.
type TxOutput struct {
	Vout         uint32
	Value        int64
	Address      string
	ScriptPubKey []byte
}

// TxDetail is the normalized shape the Node Client returns for a txid.
type TxDetail struct {
	Txid      string
	Height    int64
	Size      int
	Vsize     int
	Inputs    []TxInput
	Outputs   []TxOutput
	IsCoinbase bool
}

// EnrichedTransaction is one row per txid owning at least one P2MS output.
type EnrichedTransaction struct {
	Txid             string
	Height           int64
	InputCount       int
	OutputCount      int
	TotalInputValue  int64
	TotalOutputValue int64
	TransactionFee   int64 // signed; negative for coinbase
	FeePerByte       float64
	TransactionSize  int
	FirstInputTxid   string // ARC4 key material for Stamps/Counterparty
	FirstInputAddress string // input 0's spent-output address; source of Omni's keystream pubkey-hash

	BurnKeyDetections []BurnKeyDetection
	ExodusOutputs     []AddressOutput
	WikiLeaksOutputs  []AddressOutput
	OpReturnOutputs   []OpReturnOutput
}

// OpReturnOutput is a non-P2MS OP_RETURN output's payload (the bytes
// after the OP_RETURN opcode and its push), scanned during enrichment
// for OpReturnSignalled and PPk.
type OpReturnOutput struct {
	Vout    uint32
	Payload []byte
}

// BurnKeyDetection records a known burn-key pattern found in a pubkey slot.
type BurnKeyDetection struct {
	Vout    uint32
	Slot    int
	Pattern string
}

// AddressOutput records an output paying a well-known marker address
// (Exodus, WikiLeaks Cablegate).
type AddressOutput struct {
	Vout    uint32
	Address string
}

// Protocol is the enumerated embedding protocol a P2MS-bearing
// transaction is classified into.
type Protocol string

const (
	ProtocolOmniLayer            Protocol = "OmniLayer"
	ProtocolChancecoin           Protocol = "Chancecoin"
	ProtocolBitcoinStamps        Protocol = "BitcoinStamps"
	ProtocolCounterparty         Protocol = "Counterparty"
	ProtocolAsciiIdentifier      Protocol = "AsciiIdentifier"
	ProtocolPPk                  Protocol = "PPk"
	ProtocolWikiLeaksCablegate   Protocol = "WikiLeaksCablegate"
	ProtocolOpReturnSignalled    Protocol = "OpReturnSignalled"
	ProtocolDataStorage          Protocol = "DataStorage"
	ProtocolLikelyDataStorage    Protocol = "LikelyDataStorage"
	ProtocolLikelyLegitMultisig  Protocol = "LikelyLegitimateMultisig"
	ProtocolUnknown              Protocol = "Unknown"
)

// TransportProtocol distinguishes Stamps carried bare from Stamps
// carried inside a Counterparty envelope.
type TransportProtocol string

const (
	TransportPure         TransportProtocol = "Pure"
	TransportCounterparty TransportProtocol = "Counterparty"
)

// TransactionClassification is one row per txid (Stage 3).
type TransactionClassification struct {
	Txid                   string
	Protocol               Protocol
	Variant                string // nullable in the store; "" means NULL
	ContentType            string
	TransportProtocol      TransportProtocol
	ProtocolSignatureFound bool
	AdditionalMetadata     map[string]any
}

// SpendabilityReason is a short tag explaining is_spendable.
type SpendabilityReason string

const (
	ReasonSufficientRealKeys   SpendabilityReason = "sufficient_real_keys"
	ReasonBurnKeysBlock        SpendabilityReason = "burn_keys_block_threshold"
	ReasonInvalidECPoint       SpendabilityReason = "invalid_ec_point"
	ReasonNullKeysOnly         SpendabilityReason = "null_keys_only"
	ReasonNotEvaluated         SpendabilityReason = "not_evaluated"
)

// P2MSOutputClassification is one row per (txid, vout) P2MS output.
type P2MSOutputClassification struct {
	Txid             string
	Vout             uint32
	Protocol         Protocol
	Variant          string
	ContentType      string
	IsSpendable      *bool // nil = not evaluated
	SpendabilityTag  SpendabilityReason
	RealPubkeyCount  int
	BurnKeyCount     int
	DataKeyCount     int
}

// Stage identifies which of the three pipeline stages a Checkpoint belongs to.
type Stage string

const (
	StageExtractor Stage = "extractor"
	StageEnricher  Stage = "enricher"
	StageClassifier Stage = "classifier"
)

// Checkpoint is the durable, per-stage resume point.
type Checkpoint struct {
	Stage        Stage
	ByteOffset   int64  // Stage 1
	LinesRead    int64  // Stage 1
	LastTxid     string // Stages 2-3
	BatchIndex   int64
}

// Classification bundles the transaction-level and per-output results
// a detector produces on a match.
type Classification struct {
	Protocol               Protocol
	Variant                string
	ContentType            string
	TransportProtocol      TransportProtocol
	ProtocolSignatureFound bool
	AdditionalMetadata     map[string]any

	// DecodedPayload is the detector's fully decrypted/deobfuscated
	// body, when it produced one (Stamps, PPk, DataStorage). Nil for
	// detectors that only classify without recovering a payload
	// (Omni, Counterparty). Consumed by the decoded artifact writer
	// (spec.md §6); never persisted to the Store.
	DecodedPayload []byte

	// Outputs maps vout -> per-output classification fields not
	// already implied by the transaction-level result. Detectors that
	// don't need per-output granularity may leave this nil; the driver
	// fills every P2MS output with the transaction-level protocol/variant.
	Outputs map[uint32]OutputResult
}

// OutputResult is the per-output portion of a detector's verdict.
type OutputResult struct {
	Variant         string
	ContentType     string
	IsSpendable     *bool
	SpendabilityTag SpendabilityReason
	RealPubkeyCount int
	BurnKeyCount    int
	DataKeyCount    int
}
