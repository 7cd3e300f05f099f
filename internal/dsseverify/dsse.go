// Package dsseverify implements the DSSE processor (spec §4.5, C5):
// pre-authentication encoding, envelope signature verification against the
// Fulcio leaf's public key, and in-toto subject digest extraction.
//
// The PAE format and the in-toto statement's subject/digest shape come
// straight from the DSSE and in-toto specifications; this module decodes
// only the handful of fields the verification result needs rather than
// adopting in-toto-golang or go-securesystemslib/dsse wholesale — both are
// transitive-only entries in the teacher's go.mod (pulled in by
// sigstore-go, never imported by teacher code directly), and neither
// exposes the envelope as raw bytes the way a zkVM guest needs to replay
// the exact signature check deterministically.
package dsseverify

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"fmt"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/sigverify"
)

const paeHeader = "DSSEv1"

// PAE computes the DSSE pre-authentication encoding:
// "DSSEv1" SP len(payloadType) SP payloadType SP len(payload) SP payload
func PAE(payloadType string, payload []byte) []byte {
	out := make([]byte, 0, len(paeHeader)+len(payloadType)+len(payload)+32)
	out = append(out, paeHeader...)
	out = appendField(out, []byte(payloadType))
	out = appendField(out, payload)
	return out
}

func appendField(dst, field []byte) []byte {
	dst = append(dst, ' ')
	dst = append(dst, fmt.Sprintf("%d", len(field))...)
	dst = append(dst, ' ')
	dst = append(dst, field...)
	return dst
}

// Envelope mirrors the dsseEnvelope fields a Sigstore bundle carries
// (spec §6.1): payload/payloadType plus a list of signatures, of which
// only the first is verified per spec §4.5.
type Envelope struct {
	PayloadType string
	Payload     []byte
	Signatures  [][]byte
}

// Statement is the minimal in-toto statement shape this module reads:
// just enough to recover subject[0].digest, per spec §4.5.
type Statement struct {
	Subject []struct {
		Digest map[string]string `json:"digest"`
	} `json:"subject"`
}

// DigestAlgorithm mirrors VerificationResult.subject_digest_algorithm
// (spec §3).
type DigestAlgorithm uint8

const (
	DigestUnknown DigestAlgorithm = 0
	DigestSha256  DigestAlgorithm = 1
	DigestSha384  DigestAlgorithm = 2
)

// Verify checks env's first signature against the leaf public key and
// extracts the subject digest from the decoded in-toto statement, per
// spec §4.5.
func Verify(env Envelope, leafKey *ecdsa.PublicKey, leafAlg x509.SignatureAlgorithm) (digest []byte, alg DigestAlgorithm, err error) {
	if len(env.Signatures) == 0 {
		return nil, DigestUnknown, &verifier.Error{Kind: verifier.KindInvalidDSSESignature, Message: "no signatures present in envelope"}
	}
	message := PAE(env.PayloadType, env.Payload)
	if verr := sigverify.VerifyECDSA(leafKey, leafAlg, message, env.Signatures[0]); verr != nil {
		return nil, DigestUnknown, &verifier.Error{Kind: verifier.KindInvalidDSSESignature, Message: "dsse envelope signature verification failed", Cause: verr}
	}

	var stmt Statement
	if jerr := json.Unmarshal(env.Payload, &stmt); jerr != nil {
		return nil, DigestUnknown, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "in-toto statement is not valid JSON", Cause: jerr}
	}
	if len(stmt.Subject) == 0 {
		return nil, DigestUnknown, &verifier.Error{Kind: verifier.KindEmptySubject, Message: "in-toto statement has no subjects"}
	}

	digests := stmt.Subject[0].Digest
	if hex, ok := digests["sha256"]; ok {
		d, derr := decodeDigestHex(hex, 32)
		if derr != nil {
			return nil, DigestUnknown, derr
		}
		return d, DigestSha256, nil
	}
	if hex, ok := digests["sha384"]; ok {
		d, derr := decodeDigestHex(hex, 48)
		if derr != nil {
			return nil, DigestUnknown, derr
		}
		return d, DigestSha384, nil
	}
	return nil, DigestUnknown, &verifier.Error{Kind: verifier.KindUnsupportedSubjectDigest, Message: "subject[0].digest has neither sha256 nor sha384"}
}

func decodeDigestHex(hexStr string, wantLen int) ([]byte, error) {
	b, err := der.DecodeHex(hexStr)
	if err != nil {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "subject digest is not valid hex", Cause: err}
	}
	if len(b) != wantLen {
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedSubjectDigest, Message: fmt.Sprintf("subject digest has unexpected length %d", len(b))}
	}
	return b, nil
}
