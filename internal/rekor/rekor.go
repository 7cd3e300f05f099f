// Package rekor implements the Rekor transparency-log verifier (spec §4.7,
// C7): canonical leaf construction, RFC 6962 inclusion-proof verification,
// and optional signed-entry-timestamp (SET) verification.
//
// The Merkle math (leaf hashing, inclusion-proof walk) is delegated to
// transparency-dev/merkle's rfc6962 hasher and proof verifier — the same
// library the pack's own Rekor client code reaches for this concern with
// (see pxp928-rekor's verify package and the vendored copy of
// sigstore/rekor's verify package). The library is pure Go math over
// byte slices with no I/O, no clock, and no allocator surprises, so it
// carries the same determinism guarantees a hand-rolled version would.
package rekor

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"

	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/sigverify"
)

// LeafHash computes the RFC 6962 leaf hash of a canonical Rekor entry body,
// per spec §4.7 step 2.
func LeafHash(canonicalBody []byte) [32]byte {
	var out [32]byte
	copy(out[:], rfc6962.DefaultHasher.HashLeaf(canonicalBody))
	return out
}

// InclusionProof mirrors the fields a Sigstore bundle's inclusionProof
// carries (spec §6.1).
type InclusionProof struct {
	LogIndex int64
	TreeSize int64
	RootHash [32]byte
	Hashes   [][32]byte
}

// VerifyInclusion checks proof.Hashes against leafHash per the RFC 6962
// audit-path algorithm (spec §4.7 step 3) and reports whether the
// reconstructed root matches proof.RootHash.
func VerifyInclusion(leafHash [32]byte, ip InclusionProof) error {
	if ip.TreeSize <= 0 {
		return &verifier.Error{Kind: verifier.KindInclusionProofInvalid, Message: "tree size must be positive"}
	}
	if ip.LogIndex < 0 || ip.LogIndex >= ip.TreeSize {
		return &verifier.Error{Kind: verifier.KindInclusionProofInvalid, Message: "leaf index out of range for tree size"}
	}

	hashes := make([][]byte, len(ip.Hashes))
	for i, h := range ip.Hashes {
		hashes[i] = h[:]
	}

	if err := proof.VerifyInclusion(rfc6962.DefaultHasher, uint64(ip.LogIndex), uint64(ip.TreeSize), leafHash[:], hashes, ip.RootHash[:]); err != nil {
		return &verifier.Error{Kind: verifier.KindInclusionProofInvalid, Message: "inclusion proof verification failed", Cause: err}
	}
	return nil
}

// CanonicalBody is the Rekor DSSE-kind record (v0.0.1) this module builds
// when a bundle doesn't already carry a committed canonicalizedBody (spec
// §4.7 step 1, §9 "prefer round-tripping through the committed body").
type CanonicalBody struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Spec       canonicalBodySpec `json:"spec"`
}

type canonicalBodySpec struct {
	EnvelopeHash hashRef           `json:"envelopeHash"`
	PayloadHash  hashRef           `json:"payloadHash"`
	Signatures   []canonicalSigRef `json:"signatures"`
}

type hashRef struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type canonicalSigRef struct {
	Signature string `json:"signature"`
	Verifier  string `json:"verifier"`
}

// BuildCanonicalBody constructs the Rekor DSSE-kind record (v0.0.1) per
// spec §4.7 step 1, for the case where the bundle doesn't already carry a
// committed canonicalizedBody to round-trip through (spec §9).
func BuildCanonicalBody(envelopeJSON, payloadBytes, sigBytes, leafCertDER []byte) ([]byte, error) {
	envHash := sha256.Sum256(envelopeJSON)
	payHash := sha256.Sum256(payloadBytes)
	body := CanonicalBody{
		APIVersion: "0.0.1",
		Kind:       "dsse",
		Spec: canonicalBodySpec{
			EnvelopeHash: hashRef{Algorithm: "sha256", Value: hexEncode(envHash[:])},
			PayloadHash:  hashRef{Algorithm: "sha256", Value: hexEncode(payHash[:])},
			Signatures: []canonicalSigRef{{
				Signature: base64.StdEncoding.EncodeToString(sigBytes),
				Verifier:  base64.StdEncoding.EncodeToString(leafCertDER),
			}},
		},
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "failed to canonicalize Rekor entry body", Cause: err}
	}
	return out, nil
}

// SignedEntryTimestamp holds the Rekor SET fields VerifySET checks, grounded
// on the canonical `{logID, logIndex, body, integratedTime}` payload shape
// spec §4.7 step 4 describes (RECOMMENDED; a SET that is present is always
// verified, and VerificationOptions.RequireSET rejects an entry without one —
// see SPEC_FULL.md §6).
type SignedEntryTimestamp struct {
	LogID          []byte
	LogIndex       int64
	Body           []byte
	IntegratedTime int64
	Signature      []byte
}

type setPayload struct {
	Body           string `json:"body"`
	IntegratedTime int64  `json:"integratedTime"`
	LogID          string `json:"logID"`
	LogIndex       int64  `json:"logIndex"`
}

// VerifySET checks set.Signature over the canonical JSON serialization of
// the SET payload using the transparency log's public key.
func VerifySET(set SignedEntryTimestamp, logKey *ecdsa.PublicKey) error {
	payload := setPayload{
		Body:           base64.StdEncoding.EncodeToString(set.Body),
		IntegratedTime: set.IntegratedTime,
		LogID:          hexEncode(set.LogID),
		LogIndex:       set.LogIndex,
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "failed to canonicalize SET payload", Cause: err}
	}
	if err := sigverify.VerifyECDSA(logKey, x509.ECDSAWithSHA256, canonical, set.Signature); err != nil {
		return &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "signed entry timestamp verification failed", Cause: err}
	}
	return nil
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[2*i] = digits[c>>4]
		out[2*i+1] = digits[c&0x0F]
	}
	return string(out)
}
