// Package rfc3161 implements the RFC 3161 timestamp verifier (spec §4.6,
// C6): PKCS#7/CMS SignedData parsing, TSTInfo decoding, signed-attribute
// validation, and message-imprint binding to the DSSE signature bytes.
//
// CMS's signedAttrs quirk — the field is declared `[0] IMPLICIT SET OF
// Attribute` but DER requires the signature to run over the re-tagged
// `SET OF` encoding rather than the implicit form — is handled by
// retagging the captured raw bytes in place, the same trick every
// CMS-aware verifier (openssl, pyca/cryptography) uses; there is no corpus
// library (digitorus/pkcs7, digitorus/timestamp — both transitive-only in
// the teacher's go.mod via sigstore-go) whose exported API exposes the
// signed-attribute raw bytes and TSTInfo fields at the level spec §4.6
// needs, so this module decodes CMS directly on top of internal/der.
package rfc3161

import (
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"strings"
	"time"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/certchain"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/sigverify"
)

// ImprintAlgorithm mirrors VerificationResult.message_imprint_algorithm
// (spec §3), using the same small enum convention as the subject digest
// algorithm field.
type ImprintAlgorithm uint8

const (
	ImprintUnknown ImprintAlgorithm = 0
	ImprintSha256  ImprintAlgorithm = 1
	ImprintSha384  ImprintAlgorithm = 2
	ImprintSha512  ImprintAlgorithm = 3
	ImprintSha1    ImprintAlgorithm = 4
)

func imprintAlgorithmEnum(oid asn1.ObjectIdentifier) ImprintAlgorithm {
	switch {
	case oid.Equal(oidSHA256):
		return ImprintSha256
	case oid.Equal(oidSHA384):
		return ImprintSha384
	case oid.Equal(oidSHA512):
		return ImprintSha512
	case oid.Equal(oidSHA1):
		return ImprintSha1
	default:
		return ImprintUnknown
	}
}

// Result is what C6 contributes to VerificationResult, per spec §3/§4.6.6.
type Result struct {
	SigningTime             time.Time
	TSAChainHashes          [][32]byte
	MessageImprintAlgorithm ImprintAlgorithm
	MessageImprint          []byte
}

// Verify checks a DER-encoded RFC 3161 timestamp token (CMS ContentInfo
// wrapping a TSTInfo-bearing SignedData) against dsseSignature (the bytes
// the token must attest to, per spec §4.6 step 4) and tsaChain (leaf-first,
// root-last, selected externally by the trust-root collaborator).
func Verify(tokenDER []byte, dsseSignature []byte, tsaChain []*certchain.Certificate) (*Result, error) {
	if len(tsaChain) < 2 {
		return nil, &verifier.Error{Kind: verifier.KindChainBroken, Message: "tsa chain must contain at least a leaf and a root"}
	}

	sd, err := parseSignedData(tokenDER)
	if err != nil {
		return nil, err
	}

	tstInfo, err := parseTSTInfo(sd.eContent)
	if err != nil {
		return nil, err
	}

	if err := certchain.VerifyChain(tsaChain, tstInfo.GenTime); err != nil {
		return nil, err
	}
	if err := certchain.RequireLeafEKU(tsaChain[0], false); err != nil {
		return nil, err
	}

	if len(sd.embeddedCerts) > 0 {
		matched := false
		for _, raw := range sd.embeddedCerts {
			if string(raw) == string(tsaChain[0].Raw) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, &verifier.Error{Kind: verifier.KindTsaCertMismatch,
				Message: "embedded TSA certificate does not match trust-bundle-selected TSA leaf"}
		}
	}

	if len(sd.signerInfos) != 1 {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "expected exactly one SignerInfo"}
	}
	si := sd.signerInfos[0]

	message := sd.eContent
	if si.hasSignedAttrs {
		digest, herr := hashByOID(si.digestAlgorithm, sd.eContent)
		if herr != nil {
			return nil, &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "unsupported signed-attribute digest algorithm", Cause: herr}
		}
		if string(digest) != string(si.messageDigestAttr) {
			return nil, &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "signed attribute messageDigest does not match eContent"}
		}
		if !si.contentTypeAttr.Equal(oidTSTInfo) {
			return nil, &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "signed attribute contentType is not id-ct-TSTInfo"}
		}
		retagged := append([]byte(nil), si.signedAttrsRaw...)
		retagged[0] = 0x31 // universal, constructed SET — see package doc
		message = retagged
	}

	alg, err := signatureAlgorithmFromOID(si.signatureAlgorithm)
	if err != nil {
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm, Message: err.Error()}
	}

	leaf := tsaChain[0]
	switch {
	case leaf.PublicKey != nil:
		err = sigverify.VerifyECDSA(leaf.PublicKey, alg, message, si.signature)
	case leaf.RSAPublicKey != nil:
		err = sigverify.VerifyRSA(leaf.RSAPublicKey, alg, message, si.signature)
	default:
		err = &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm, Message: "tsa leaf certificate has no usable public key"}
	}
	if err != nil {
		return nil, &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "cms signer signature verification failed", Cause: err}
	}

	expectedImprint, err := hashByOID(tstInfo.MessageImprintAlg, dsseSignature)
	if err != nil {
		return nil, &verifier.Error{Kind: verifier.KindImprintMismatch, Message: "unsupported message imprint algorithm", Cause: err}
	}
	if string(expectedImprint) != string(tstInfo.MessageImprintHash) {
		return nil, &verifier.Error{Kind: verifier.KindImprintMismatch, Message: "message imprint does not match H(dsse signature)"}
	}

	chainHashes := make([][32]byte, len(tsaChain))
	for i, c := range tsaChain {
		chainHashes[i] = sha256.Sum256(c.Raw)
	}

	return &Result{
		SigningTime:             tstInfo.GenTime,
		TSAChainHashes:          chainHashes,
		MessageImprintAlgorithm: imprintAlgorithmEnum(tstInfo.MessageImprintAlg),
		MessageImprint:          tstInfo.MessageImprintHash,
	}, nil
}

// PeekSigningTime parses just enough of tokenDER to recover TSTInfo.gen_time,
// for the orchestrator's step 3 (spec §4.8): the trust-root selector needs a
// tentative signing time before any signature or chain verification runs.
func PeekSigningTime(tokenDER []byte) (time.Time, error) {
	sd, err := parseSignedData(tokenDER)
	if err != nil {
		return time.Time{}, err
	}
	tstInfo, err := parseTSTInfo(sd.eContent)
	if err != nil {
		return time.Time{}, err
	}
	return tstInfo.GenTime, nil
}

type signerInfo struct {
	digestAlgorithm   asn1.ObjectIdentifier
	hasSignedAttrs    bool
	signedAttrsRaw    []byte
	contentTypeAttr   asn1.ObjectIdentifier
	messageDigestAttr []byte
	signatureAlgorithm asn1.ObjectIdentifier
	signature         []byte
}

type signedData struct {
	eContent      []byte
	embeddedCerts [][]byte
	signerInfos   []signerInfo
}

func parseSignedData(tokenDER []byte) (*signedData, error) {
	r := der.NewReader(tokenDER)
	ci, _, err := r.ReadSequence()
	if err != nil {
		return nil, malformed("content info", err)
	}
	ctOID, err := ci.ReadObjectIdentifier()
	if err != nil {
		return nil, malformed("content type", err)
	}
	if !asn1.ObjectIdentifier(ctOID).Equal(oidSignedData) {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "content type is not id-signedData"}
	}
	content, _, ok, err := ci.Explicit(0)
	if err != nil || !ok {
		return nil, malformed("content [0] wrapper", err)
	}

	sd, _, err := content.ReadSequence()
	if err != nil {
		return nil, malformed("SignedData", err)
	}
	if _, err := sd.ReadInteger(); err != nil { // version
		return nil, malformed("SignedData.version", err)
	}
	if _, _, err := sd.ReadSet(); err != nil { // digestAlgorithms
		return nil, malformed("SignedData.digestAlgorithms", err)
	}

	encap, _, err := sd.ReadSequence()
	if err != nil {
		return nil, malformed("EncapsulatedContentInfo", err)
	}
	eContentType, err := encap.ReadObjectIdentifier()
	if err != nil {
		return nil, malformed("eContentType", err)
	}
	if !asn1.ObjectIdentifier(eContentType).Equal(oidTSTInfo) {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "eContentType is not id-ct-TSTInfo"}
	}
	eContentReader, _, ok, err := encap.Explicit(0)
	if err != nil || !ok {
		return nil, malformed("eContent", err)
	}
	eContent, err := eContentReader.ReadOctetString()
	if err != nil {
		return nil, malformed("eContent octet string", err)
	}

	out := &signedData{eContent: eContent}

	if certsReader, _, ok, cerr := sd.ImplicitConstructed(0); cerr == nil && ok {
		for !certsReader.Empty() {
			tlv, terr := certsReader.ReadTLV()
			if terr != nil {
				return nil, malformed("certificates", terr)
			}
			out.embeddedCerts = append(out.embeddedCerts, tlv.Raw)
		}
	}

	if _, _, ok, cerr := sd.ImplicitConstructed(1); cerr == nil && ok {
		// crls: present but unused by this verifier, already consumed.
	}

	signerInfoSet, _, err := sd.ReadSet()
	if err != nil {
		return nil, malformed("signerInfos", err)
	}
	for !signerInfoSet.Empty() {
		si, serr := parseSignerInfo(signerInfoSet)
		if serr != nil {
			return nil, serr
		}
		out.signerInfos = append(out.signerInfos, *si)
	}

	return out, nil
}

func parseSignerInfo(set *der.Reader) (*signerInfo, error) {
	seq, _, err := set.ReadSequence()
	if err != nil {
		return nil, malformed("SignerInfo", err)
	}
	if _, err := seq.ReadInteger(); err != nil { // version
		return nil, malformed("SignerInfo.version", err)
	}
	if err := seq.SkipTLV(); err != nil { // sid (IssuerAndSerialNumber or [0] SubjectKeyIdentifier)
		return nil, malformed("SignerInfo.sid", err)
	}

	digAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, malformed("SignerInfo.digestAlgorithm", err)
	}
	digAlgOID, err := digAlgSeq.ReadObjectIdentifier()
	if err != nil {
		return nil, malformed("SignerInfo.digestAlgorithm OID", err)
	}

	out := &signerInfo{digestAlgorithm: digAlgOID}

	if attrsReader, raw, ok, aerr := seq.ImplicitConstructed(0); aerr == nil && ok {
		out.hasSignedAttrs = true
		out.signedAttrsRaw = raw
		for !attrsReader.Empty() {
			attrSeq, _, err := attrsReader.ReadSequence()
			if err != nil {
				return nil, malformed("Attribute", err)
			}
			attrType, err := attrSeq.ReadObjectIdentifier()
			if err != nil {
				return nil, malformed("Attribute.attrType", err)
			}
			valSet, _, err := attrSeq.ReadSet()
			if err != nil {
				return nil, malformed("Attribute.attrValues", err)
			}
			tlv, err := valSet.ReadTLV()
			if err != nil {
				return nil, malformed("Attribute value", err)
			}
			oid := asn1.ObjectIdentifier(attrType)
			switch {
			case oid.Equal(oidContentTypeCT):
				ctOID, derr := der.DecodeOID(tlv.Content)
				if derr != nil {
					return nil, malformed("contentType attribute value", derr)
				}
				out.contentTypeAttr = asn1.ObjectIdentifier(ctOID)
			case oid.Equal(oidMessageDigest):
				out.messageDigestAttr = tlv.Content
			}
		}
	}

	sigAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, malformed("SignerInfo.signatureAlgorithm", err)
	}
	sigAlgOID, err := sigAlgSeq.ReadObjectIdentifier()
	if err != nil {
		return nil, malformed("SignerInfo.signatureAlgorithm OID", err)
	}
	out.signatureAlgorithm = sigAlgOID

	sig, err := seq.ReadOctetString()
	if err != nil {
		return nil, malformed("SignerInfo.signature", err)
	}
	out.signature = sig

	if !seq.Empty() {
		_ = seq.SkipTLV() // unsignedAttrs, not used
	}

	return out, nil
}

type tstInfo struct {
	MessageImprintAlg  asn1.ObjectIdentifier
	MessageImprintHash []byte
	GenTime            time.Time
}

func parseTSTInfo(b []byte) (*tstInfo, error) {
	r := der.NewReader(b)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, malformed("TSTInfo", err)
	}
	if _, err := seq.ReadInteger(); err != nil { // version
		return nil, malformed("TSTInfo.version", err)
	}
	if _, err := seq.ReadObjectIdentifier(); err != nil { // policy
		return nil, malformed("TSTInfo.policy", err)
	}
	miSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, malformed("TSTInfo.messageImprint", err)
	}
	algSeq, _, err := miSeq.ReadSequence()
	if err != nil {
		return nil, malformed("messageImprint.hashAlgorithm", err)
	}
	algOID, err := algSeq.ReadObjectIdentifier()
	if err != nil {
		return nil, malformed("messageImprint.hashAlgorithm OID", err)
	}
	hashedMessage, err := miSeq.ReadOctetString()
	if err != nil {
		return nil, malformed("messageImprint.hashedMessage", err)
	}
	if _, err := seq.ReadInteger(); err != nil { // serialNumber
		return nil, malformed("TSTInfo.serialNumber", err)
	}
	tlv, err := seq.ReadTLV() // genTime
	if err != nil {
		return nil, malformed("TSTInfo.genTime", err)
	}
	if tlv.Tag != der.TagGeneralizedTime {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "TSTInfo.genTime is not GeneralizedTime"}
	}
	genTime, err := parseGeneralizedTime(tlv.Content)
	if err != nil {
		return nil, malformed("TSTInfo.genTime value", err)
	}

	return &tstInfo{
		MessageImprintAlg:  asn1.ObjectIdentifier(algOID),
		MessageImprintHash: hashedMessage,
		GenTime:            genTime,
	}, nil
}

func parseGeneralizedTime(content []byte) (time.Time, error) {
	s := string(content)
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("rfc3161: GeneralizedTime must be UTC (Z-suffixed)")
	}
	s = strings.TrimSuffix(s, "Z")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("rfc3161: invalid GeneralizedTime: %w", err)
	}
	return t.UTC(), nil
}

func malformed(what string, cause error) error {
	return &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: fmt.Sprintf("rfc3161: %s", what), Cause: cause}
}
