package verifier

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/certchain"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/dsseverify"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/journal"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/oidc"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/rekor"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/rfc3161"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/sigstorebundle"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/trustroot"
)

func (f FulcioInstance) toTrustroot() trustroot.FulcioInstance {
	switch f {
	case FulcioInstanceGithub:
		return trustroot.FulcioInstanceGithub
	case FulcioInstancePublicGood:
		return trustroot.FulcioInstancePublicGood
	default:
		return trustroot.FulcioInstanceAny
	}
}

// Verify implements the bundle orchestrator (spec §4.8): the single pure
// entry point a zkVM guest calls with the bundle bytes, the trust-root
// bytes, and verification options, producing a VerificationResult or an
// Error. It performs no I/O and reads no clock; every timestamp check runs
// against a signing time recovered from the inputs themselves.
func Verify(bundleBytes, trustBundleBytes []byte, opts VerificationOptions) (*VerificationResult, error) {
	bundle, err := sigstorebundle.Parse(bundleBytes)
	if err != nil {
		return nil, err
	}

	trust, err := trustroot.Load(trustBundleBytes)
	if err != nil {
		return nil, err
	}

	var (
		signingTime time.Time
		proofType   ProofType
	)
	switch {
	case len(bundle.RFC3161Timestamps) > 0:
		proofType = ProofRFC3161
		signingTime, err = rfc3161.PeekSigningTime(bundle.RFC3161Timestamps[0])
		if err != nil {
			return nil, err
		}
	case len(bundle.TlogEntries) > 0:
		proofType = ProofRekor
		signingTime = time.Unix(bundle.TlogEntries[0].IntegratedTime, 0).UTC()
	default:
		return nil, newErr(KindAmbiguousTimestamp, "bundle carries neither an rfc3161 timestamp nor a tlog entry", nil)
	}

	leaf, err := certchain.ParseCertificate(bundle.LeafCertificateDER)
	if err != nil {
		return nil, err
	}

	ca, err := trustroot.SelectCA(trust, signingTime, opts.FulcioInstance.toTrustroot())
	if err != nil {
		return nil, err
	}
	caChain, err := parseChain(ca.CertChainDER)
	if err != nil {
		return nil, err
	}
	fulcioChain := append([]*certchain.Certificate{leaf}, caChain...)

	if err := certchain.VerifyChain(fulcioChain, signingTime); err != nil {
		return nil, err
	}
	if err := certchain.RequireLeafEKU(leaf, true); err != nil {
		return nil, err
	}

	leafAlg, err := signatureAlgorithmForCurve(leaf.Curve)
	if err != nil {
		return nil, err
	}

	subjectDigest, digestAlg, err := dsseverify.Verify(dsseverify.Envelope{
		PayloadType: bundle.DSSEPayloadType,
		Payload:     bundle.DSSEPayload,
		Signatures:  bundle.DSSESignatures,
	}, leaf.PublicKey, leafAlg)
	if err != nil {
		return nil, err
	}

	certHashes := make([][32]byte, len(fulcioChain))
	for i, c := range fulcioChain {
		certHashes[i] = sha256.Sum256(c.Raw)
	}

	result := &VerificationResult{
		Timestamp:              uint64(signingTime.Unix()),
		ProofType:              proofType,
		CertificateHashes:      certHashes,
		SubjectDigest:          subjectDigest,
		SubjectDigestAlgorithm: uint8(digestAlg),
	}

	switch proofType {
	case ProofRFC3161:
		if err := applyRFC3161(result, bundle, trust); err != nil {
			return nil, err
		}
	case ProofRekor:
		if err := applyRekor(result, bundle, trust, opts); err != nil {
			return nil, err
		}
	}

	claims := oidc.Extract(leaf)
	result.OIDCIssuer = claims.Issuer
	result.OIDCSubject = claims.Subject
	result.OIDCWorkflowRef = claims.WorkflowRef
	result.OIDCRepository = claims.Repository
	result.OIDCEventName = claims.EventName

	if opts.ExpectedIssuer != "" && opts.ExpectedIssuer != claims.Issuer {
		return nil, newErr(KindIssuerMismatch, "oidc issuer does not match expected issuer", nil)
	}
	if opts.ExpectedSubject != "" && opts.ExpectedSubject != claims.Subject {
		return nil, newErr(KindSubjectMismatch, "oidc subject does not match expected subject", nil)
	}
	if len(opts.ExpectedDigest) > 0 && !bytes.Equal(opts.ExpectedDigest, subjectDigest) {
		return nil, newErr(KindDigestMismatch, "subject digest does not match expected digest", nil)
	}

	result.journal = journal.Encode(result.toJournalResult())
	return result, nil
}

func applyRFC3161(result *VerificationResult, bundle *sigstorebundle.Bundle, trust *trustroot.TrustBundle) error {
	tsa, err := trustroot.SelectTSA(trust, time.Unix(int64(result.Timestamp), 0).UTC())
	if err != nil {
		return err
	}
	tsaChain, err := parseChain(tsa.CertChainDER)
	if err != nil {
		return err
	}

	rres, err := rfc3161.Verify(bundle.RFC3161Timestamps[0], bundle.DSSESignatures[0], tsaChain)
	if err != nil {
		return err
	}
	result.TSAChainHashes = rres.TSAChainHashes
	result.MessageImprintAlgorithm = uint8(rres.MessageImprintAlgorithm)
	result.MessageImprint = rres.MessageImprint
	return nil
}

func applyRekor(result *VerificationResult, bundle *sigstorebundle.Bundle, trust *trustroot.TrustBundle, opts VerificationOptions) error {
	entry := bundle.TlogEntries[0]

	leafHash := rekor.LeafHash(entry.CanonicalizedBody)
	proof := rekor.InclusionProof{
		LogIndex: entry.InclusionProof.LogIndex,
		TreeSize: entry.InclusionProof.TreeSize,
		RootHash: entry.InclusionProof.RootHash,
		Hashes:   entry.InclusionProof.Hashes,
	}
	if err := rekor.VerifyInclusion(leafHash, proof); err != nil {
		return err
	}

	signingTime := time.Unix(int64(result.Timestamp), 0).UTC()
	var (
		tlog *trustroot.TransparencyLog
		err  error
	)
	if len(entry.LogID) > 0 {
		// The entry names its log explicitly; disambiguate by logID rather
		// than validity window alone.
		tlog, err = trustroot.SelectTlog(trust, entry.LogID, signingTime)
	} else {
		tlog, err = trustroot.SelectTlogByTime(trust, signingTime)
	}
	if err != nil {
		return err
	}
	logID := sha256.Sum256(tlog.PublicKeyDER)
	result.RekorLogID = logID
	result.RekorLogIndex = uint64(entry.InclusionProof.LogIndex)
	result.RekorEntryIndex = uint64(entry.LogIndex)

	if !entry.HasSignedEntryTimestamp {
		if opts.RequireSET {
			return newErr(KindTimestampSigInvalid, "signed entry timestamp required but absent from tlog entry", nil)
		}
		return nil
	}

	logKey, err := parseECDSAPublicKey(tlog.PublicKeyDER)
	if err != nil {
		return err
	}
	set := rekor.SignedEntryTimestamp{
		LogID:          logID[:],
		LogIndex:       entry.InclusionProof.LogIndex,
		Body:           entry.CanonicalizedBody,
		IntegratedTime: entry.IntegratedTime,
		Signature:      entry.SignedEntryTimestamp,
	}
	return rekor.VerifySET(set, logKey)
}

func parseChain(rawChain [][]byte) ([]*certchain.Certificate, error) {
	out := make([]*certchain.Certificate, 0, len(rawChain))
	for _, raw := range rawChain {
		c, err := certchain.ParseCertificate(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func signatureAlgorithmForCurve(curve certchain.Curve) (x509.SignatureAlgorithm, error) {
	switch curve {
	case certchain.CurveP256:
		return x509.ECDSAWithSHA256, nil
	case certchain.CurveP384:
		return x509.ECDSAWithSHA384, nil
	default:
		return 0, newErr(KindUnsupportedSignatureAlgorithm, "leaf certificate uses an unsupported curve", nil)
	}
}

func parseECDSAPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, newErr(KindMalformedEncoding, "failed to parse transparency log public key", err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, newErr(KindUnsupportedSignatureAlgorithm, fmt.Sprintf("transparency log public key type %T is not ECDSA", pub), nil)
	}
	return ecKey, nil
}
