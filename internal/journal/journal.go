// Package journal implements the result encoder (spec §4.10/§6.4, C10):
// the canonical byte output a zkVM guest emits for on-chain consumption.
//
// The tail of the journal is standard Ethereum ABI tuple encoding (head of
// fixed-size words, each either an inline static value or an offset into a
// trailing dynamic-data section) so that on-chain Solidity code can
// `abi.decode` it directly. No corpus repo emits ABI-encoded output — this
// encoder is hand-rolled against the Solidity ABI spec rather than adopting
// an ABI library, since the layout here is a small, fully-pinned 14-field
// tuple and the zkVM guest must reproduce it byte-for-byte without pulling
// in a contract-binding-generation toolchain.
package journal

import (
	"fmt"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
)

// ProofType enumerates which timestamp mechanism a VerificationResult
// carries, per spec §3.
type ProofType uint8

const (
	ProofNone    ProofType = 0
	ProofRfc3161 ProofType = 1
	ProofRekor   ProofType = 2
)

// Result is the in-memory form of VerificationResult (spec §3), ready for
// canonical encoding.
type Result struct {
	Timestamp               uint64
	ProofType                ProofType
	CertificateHashes        [][32]byte
	SubjectDigest            []byte
	SubjectDigestAlgorithm   uint8
	OIDCIssuer               string
	OIDCSubject              string
	OIDCWorkflowRef          string
	OIDCRepository           string
	OIDCEventName            string
	TSAChainHashes           [][32]byte
	MessageImprintAlgorithm  uint8
	MessageImprint           []byte
	RekorLogID               [32]byte
	RekorLogIndex            uint64
	RekorEntryIndex          uint64
}

const headerLen = 41
const numFields = 14
const wordLen = 32

// Encode produces the canonical journal bytes for r, per spec §6.4.
func Encode(r *Result) []byte {
	out := make([]byte, 0, headerLen+numFields*wordLen)
	out = append(out, der.PutUint64(r.Timestamp)...)
	out = append(out, byte(r.ProofType))
	out = append(out, make([]byte, wordLen)...)

	fields := []field{
		dynamicHashArray(r.CertificateHashes),
		dynamicBytes(r.SubjectDigest),
		staticUint(uint64(r.SubjectDigestAlgorithm)),
		dynamicBytes([]byte(r.OIDCIssuer)),
		dynamicBytes([]byte(r.OIDCSubject)),
		dynamicBytes([]byte(r.OIDCWorkflowRef)),
		dynamicBytes([]byte(r.OIDCRepository)),
		dynamicBytes([]byte(r.OIDCEventName)),
		dynamicHashArray(r.TSAChainHashes),
		staticUint(uint64(r.MessageImprintAlgorithm)),
		dynamicBytes(r.MessageImprint),
		staticHash(r.RekorLogID),
		staticUint(r.RekorLogIndex),
		staticUint(r.RekorEntryIndex),
	}
	out = append(out, encodeTuple(fields)...)
	return out
}

// field is one top-level ABI tuple element: either a 32-byte static value
// placed directly in the head, or a dynamic payload (already including its
// own length prefix) placed in the tail and pointed to by an offset word.
type field struct {
	static  [32]byte
	dynamic []byte // non-nil marks this field dynamic
}

func staticUint(v uint64) field {
	var f field
	b := der.PutUint64(v)
	copy(f.static[24:], b)
	return f
}

func staticHash(h [32]byte) field {
	return field{static: h}
}

func dynamicBytes(b []byte) field {
	out := make([]byte, 0, wordLen+roundUp32(len(b)))
	out = append(out, lengthWord(len(b))...)
	out = append(out, b...)
	if pad := roundUp32(len(b)) - len(b); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return field{dynamic: out}
}

func dynamicHashArray(hashes [][32]byte) field {
	out := make([]byte, 0, wordLen+len(hashes)*wordLen)
	out = append(out, lengthWord(len(hashes))...)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return field{dynamic: out}
}

func lengthWord(n int) []byte {
	var w [32]byte
	copy(w[24:], der.PutUint64(uint64(n)))
	return w[:]
}

func roundUp32(n int) int {
	if n%32 == 0 {
		return n
	}
	return n + (32 - n%32)
}

func encodeTuple(fields []field) []byte {
	headLen := len(fields) * wordLen
	head := make([]byte, headLen)
	var tail []byte
	for i, f := range fields {
		if f.dynamic == nil {
			copy(head[i*wordLen:i*wordLen+wordLen], f.static[:])
			continue
		}
		offset := headLen + len(tail)
		copy(head[i*wordLen+24:i*wordLen+wordLen], der.PutUint64(uint64(offset)))
		tail = append(tail, f.dynamic...)
	}
	return append(head, tail...)
}

// Decode parses journal bytes back into a Result, the inverse of Encode,
// used by tests to check the idempotence property (spec §8 invariant 3).
func Decode(b []byte) (*Result, error) {
	if len(b) < headerLen {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "journal shorter than header"}
	}
	r := &Result{
		Timestamp: der.Uint64(b[0:8]),
		ProofType: ProofType(b[8]),
	}
	tuple := b[headerLen:]
	if len(tuple) < numFields*wordLen {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "journal tuple shorter than head"}
	}

	idx := 0
	nextHash := func() ([][32]byte, error) { return readHashArray(tuple, wordOffset(tuple, idx)) }
	nextBytes := func() ([]byte, error) { return readBytes(tuple, wordOffset(tuple, idx)) }
	nextStatic := func() uint64 { return der.Uint64(tuple[idx*wordLen+24 : idx*wordLen+32]) }
	nextStaticHash := func() [32]byte {
		var h [32]byte
		copy(h[:], tuple[idx*wordLen:idx*wordLen+32])
		return h
	}

	certHashes, err := nextHash()
	if err != nil {
		return nil, err
	}
	r.CertificateHashes = certHashes
	idx++

	subjectDigest, err := nextBytes()
	if err != nil {
		return nil, err
	}
	r.SubjectDigest = subjectDigest
	idx++

	r.SubjectDigestAlgorithm = uint8(nextStatic())
	idx++

	strs := make([]string, 5)
	for i := range strs {
		b, err := nextBytes()
		if err != nil {
			return nil, err
		}
		strs[i] = string(b)
		idx++
	}
	r.OIDCIssuer, r.OIDCSubject, r.OIDCWorkflowRef, r.OIDCRepository, r.OIDCEventName = strs[0], strs[1], strs[2], strs[3], strs[4]

	tsaHashes, err := nextHash()
	if err != nil {
		return nil, err
	}
	r.TSAChainHashes = tsaHashes
	idx++

	r.MessageImprintAlgorithm = uint8(nextStatic())
	idx++

	imprint, err := nextBytes()
	if err != nil {
		return nil, err
	}
	r.MessageImprint = imprint
	idx++

	r.RekorLogID = nextStaticHash()
	idx++

	r.RekorLogIndex = nextStatic()
	idx++

	r.RekorEntryIndex = nextStatic()
	idx++

	return r, nil
}

func wordOffset(tuple []byte, idx int) int {
	return int(der.Uint64(tuple[idx*wordLen+24 : idx*wordLen+32]))
}

func readBytes(tuple []byte, offset int) ([]byte, error) {
	if offset+wordLen > len(tuple) {
		return nil, fmt.Errorf("journal: dynamic offset %d out of range", offset)
	}
	n := int(der.Uint64(tuple[offset+24 : offset+32]))
	if n == 0 {
		return nil, nil
	}
	start := offset + wordLen
	if start+n > len(tuple) {
		return nil, fmt.Errorf("journal: dynamic length %d out of range at offset %d", n, offset)
	}
	return tuple[start : start+n], nil
}

func readHashArray(tuple []byte, offset int) ([][32]byte, error) {
	if offset+wordLen > len(tuple) {
		return nil, fmt.Errorf("journal: dynamic offset %d out of range", offset)
	}
	n := int(der.Uint64(tuple[offset+24 : offset+32]))
	if n == 0 {
		return nil, nil
	}
	start := offset + wordLen
	if start+n*wordLen > len(tuple) {
		return nil, fmt.Errorf("journal: hash array length %d out of range at offset %d", n, offset)
	}
	out := make([][32]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], tuple[start+i*wordLen:start+(i+1)*wordLen])
	}
	return out, nil
}
