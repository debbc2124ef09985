// Package script recognizes P2MS ("bare multisig") script templates and
// extracts their M-of-N structure and pubkeys.
package script

import (
	"errors"

	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// Errors returned by Parse. A non-nil error always means "not a
// canonical P2MS script" — callers treat the output as nonstandard.
var (
	ErrTooShort     = errors.New("script: too short to be P2MS")
	ErrNotMOpcode   = errors.New("script: does not begin with OP_1..OP_16")
	ErrBadPushLen   = errors.New("script: pubkey push length is not 0x21 or 0x41")
	ErrTruncated    = errors.New("script: pubkey push runs past end of script")
	ErrNotNOpcode   = errors.New("script: byte before OP_CHECKMULTISIG is not OP_1..OP_16")
	ErrNoCheckMultisig = errors.New("script: missing trailing OP_CHECKMULTISIG")
	ErrOverlong     = errors.New("script: trailing bytes after OP_CHECKMULTISIG")
	ErrMGreaterThanN = errors.New("script: M > N is not a well-formed multisig")
	ErrBadN         = errors.New("script: N does not match number of pubkeys pushed")
)

const (
	opPushData33 = 0x21
	opPushData65 = 0x41
	opCheckMultisig = 0xae
	op1  = 0x51
	op16 = 0x60
)

// isOpN reports whether b is OP_1..OP_16 and returns its numeric value.
func isOpN(b byte) (int, bool) {
	if b >= op1 && b <= op16 {
		return int(b-op1) + 1, true
	}
	return 0, false
}

// Parse recognizes the template
//   <M_opcode> <pubkey_1> ... <pubkey_N> <N_opcode> OP_CHECKMULTISIG
// tolerating a mix of 33-byte (0x21-prefixed) and 65-byte (0x41-prefixed)
// pubkey pushes within the same script. It returns the MultisigMeta on
// success or a sentinel error (see above) describing why the script is
// not canonical P2MS; the caller maps any error to script_type =
// nonstandard.
func Parse(raw []byte) (*models.MultisigMeta, error) {
	if len(raw) < 1+33+1+1 {
		return nil, ErrTooShort
	}

	m, ok := isOpN(raw[0])
	if !ok {
		return nil, ErrNotMOpcode
	}

	if raw[len(raw)-1] != opCheckMultisig {
		return nil, ErrNoCheckMultisig
	}
	n, ok := isOpN(raw[len(raw)-2])
	if !ok {
		return nil, ErrNotNOpcode
	}

	pubkeys := make([]models.PubkeySlot, 0, n)
	pos := 1
	end := len(raw) - 2 // exclusive: byte at `end` is the N opcode
	idx := 0
	for pos < end {
		lenByte := raw[pos]
		var keyLen int
		switch lenByte {
		case opPushData33:
			keyLen = 33
		case opPushData65:
			keyLen = 65
		default:
			return nil, ErrBadPushLen
		}
		if pos+1+keyLen > end {
			return nil, ErrTruncated
		}
		keyStart := pos + 1
		pubkeys = append(pubkeys, models.PubkeySlot{
			Index:  idx,
			Bytes:  append([]byte(nil), raw[keyStart:keyStart+keyLen]...),
			Offset: keyStart,
		})
		pos = keyStart + keyLen
		idx++
	}
	if pos != end {
		return nil, ErrOverlong
	}
	if n != len(pubkeys) {
		return nil, ErrBadN
	}
	if m > n {
		return nil, ErrMGreaterThanN
	}
	if m < 1 || n < 1 || n > 20 {
		return nil, ErrBadN
	}

	return &models.MultisigMeta{
		RequiredSigs: m,
		TotalPubkeys: n,
		Pubkeys:      pubkeys,
	}, nil
}

// Serialize is the inverse of Parse; Parse(Serialize(m)) == m for any
// descriptor Parse could have produced. It is used by the round-trip
// property test and nowhere in the runtime pipeline.
func Serialize(meta *models.MultisigMeta) []byte {
	out := make([]byte, 0, 1+len(meta.Pubkeys)*66+2)
	out = append(out, byte(op1+meta.RequiredSigs-1))
	for _, pk := range meta.Pubkeys {
		switch len(pk.Bytes) {
		case 33:
			out = append(out, opPushData33)
		case 65:
			out = append(out, opPushData65)
		}
		out = append(out, pk.Bytes...)
	}
	out = append(out, byte(op1+meta.TotalPubkeys-1))
	out = append(out, opCheckMultisig)
	return out
}

// ConcatPubkeyPayload concatenates the raw pubkey bytes of every slot in
// wire order. The classifier's detectors do not call it; they build
// their own slot concatenations in internal/classifier.
func ConcatPubkeyPayload(meta *models.MultisigMeta) []byte {
	out := make([]byte, 0, len(meta.Pubkeys)*65)
	for _, pk := range meta.Pubkeys {
		out = append(out, pk.Bytes...)
	}
	return out
}
