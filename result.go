package verifier

import "github.com/letmehateu/automata-slsa-sigstore-verifier/internal/journal"

// ProofType identifies which timestamp mechanism backs a VerificationResult,
// per spec §3.
type ProofType = journal.ProofType

// Re-exported ProofType values, per spec §3/§6.4.
const (
	ProofNone    = journal.ProofNone
	ProofRFC3161 = journal.ProofRfc3161
	ProofRekor   = journal.ProofRekor
)

// VerificationResult is the successful output of Verify: every field spec
// §3 assigns to VerificationResult, plus the canonical encoded form.
type VerificationResult struct {
	Timestamp              uint64
	ProofType              ProofType
	CertificateHashes       [][32]byte
	SubjectDigest           []byte
	SubjectDigestAlgorithm  uint8
	OIDCIssuer              string
	OIDCSubject             string
	OIDCWorkflowRef         string
	OIDCRepository          string
	OIDCEventName           string
	TSAChainHashes          [][32]byte
	MessageImprintAlgorithm uint8
	MessageImprint          []byte
	RekorLogID              [32]byte
	RekorLogIndex           uint64
	RekorEntryIndex         uint64

	journal []byte
}

// Journal returns the canonical ABI-decodable byte encoding of the result
// (spec §4.10/§6.4), the sole artifact downstream on-chain consumers read.
func (r *VerificationResult) Journal() []byte {
	return r.journal
}

func (r *VerificationResult) toJournalResult() *journal.Result {
	return &journal.Result{
		Timestamp:               r.Timestamp,
		ProofType:               r.ProofType,
		CertificateHashes:       r.CertificateHashes,
		SubjectDigest:           r.SubjectDigest,
		SubjectDigestAlgorithm:  r.SubjectDigestAlgorithm,
		OIDCIssuer:              r.OIDCIssuer,
		OIDCSubject:             r.OIDCSubject,
		OIDCWorkflowRef:         r.OIDCWorkflowRef,
		OIDCRepository:          r.OIDCRepository,
		OIDCEventName:           r.OIDCEventName,
		TSAChainHashes:          r.TSAChainHashes,
		MessageImprintAlgorithm: r.MessageImprintAlgorithm,
		MessageImprint:          r.MessageImprint,
		RekorLogID:              r.RekorLogID,
		RekorLogIndex:           r.RekorLogIndex,
		RekorEntryIndex:         r.RekorEntryIndex,
	}
}
