// Package certchain implements the X.509 parser (spec §4.2, C2) and chain
// verifier (spec §4.4, C4).
//
// Parsing itself (TBS/SPKI/extension extraction) is built on crypto/x509 —
// no library in the retrieved corpus reimplements X.509 ASN.1 decoding from
// scratch; even cosign, rekor, and sigstore-go all parse certificates with
// crypto/x509 and layer Sigstore-specific extension handling on top, which
// is exactly what this package does. Chain walking (chain.go) is done here
// step by step rather than delegated to x509.Certificate.CheckSignatureFrom,
// and each link's signature is checked through internal/sigverify, which
// enforces the algorithm/curve pairing (and low-S for ECDSA) and then calls
// crypto/ecdsa or crypto/rsa for the arithmetic.
package certchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"time"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
)

// Curve identifies the EC curve backing a certificate's public key.
type Curve int

const (
	CurveUnknown Curve = iota
	CurveP256
	CurveP384
)

// Fulcio OIDs recognized by the OIDC extractor (spec §4.2 table, §4.9).
var (
	OIDFulcioIssuerV2    = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 8}
	OIDFulcioIssuerV1    = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 1}
	OIDFulcioRepository  = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 12}
	OIDFulcioWorkflowRef = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 14}
	OIDFulcioEventName   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 2}
)

// FulcioExtensions carries the OIDC identity claims embedded in a Fulcio
// leaf certificate, per spec §4.2 and §4.9.
type FulcioExtensions struct {
	Issuer      string
	Repository  string
	WorkflowRef string
	EventName   string
}

// Certificate is the parsed view of one X.509 certificate, matching the
// entity in spec §3.
type Certificate struct {
	Raw          []byte
	TBS          []byte
	SignatureAlg x509.SignatureAlgorithm
	Signature    []byte
	PublicKey    *ecdsa.PublicKey
	RSAPublicKey *rsa.PublicKey
	Curve        Curve
	NotBefore    time.Time
	NotAfter     time.Time
	Subject      string
	Issuer       string
	SAN          []string
	HasCodeSigningEKU bool
	HasTimeStampingEKU bool
	Fulcio       FulcioExtensions
	SelfSigned   bool

	std *x509.Certificate
}

// allowedCriticalExtensionOIDs lists the extension OIDs this module understands
// well enough to accept as critical, per spec §4.2 ("unknown critical
// extensions MUST cause UnsupportedCriticalExtension").
var allowedCriticalExtensionOIDs = []asn1.ObjectIdentifier{
	{2, 5, 29, 15}, // KeyUsage
	{2, 5, 29, 17}, // SubjectAltName
	{2, 5, 29, 19}, // BasicConstraints
	{2, 5, 29, 37}, // ExtKeyUsage
}

// ParseCertificate decodes a DER certificate and extracts the fields C2
// requires, per spec §4.2.
func ParseCertificate(raw []byte) (*Certificate, error) {
	std, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, wrapMalformed("parse certificate", err)
	}

	for _, ext := range std.Extensions {
		if !ext.Critical {
			continue
		}
		if oidKnown(ext.Id, allowedCriticalExtensionOIDs) || oidKnown(ext.Id, fulcioOIDs()) {
			continue
		}
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedCriticalExtension,
			Message: fmt.Sprintf("unknown critical extension %v", ext.Id)}
	}

	c := &Certificate{
		Raw:          std.Raw,
		TBS:          std.RawTBSCertificate,
		SignatureAlg: std.SignatureAlgorithm,
		Signature:    std.Signature,
		NotBefore:    std.NotBefore,
		NotAfter:     std.NotAfter,
		Subject:      std.Subject.String(),
		Issuer:       std.Issuer.String(),
		SelfSigned:   std.Subject.String() == std.Issuer.String(),
		std:          std,
	}

	switch pub := std.PublicKey.(type) {
	case *ecdsa.PublicKey:
		c.PublicKey = pub
		switch pub.Curve {
		case elliptic.P256():
			c.Curve = CurveP256
		case elliptic.P384():
			c.Curve = CurveP384
		default:
			return nil, &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm,
				Message: "unsupported elliptic curve"}
		}
	case *rsa.PublicKey:
		// Fulcio leaves and intermediates are always EC, but RFC 3161 TSA
		// certificates (spec §4.3) may carry an RSA key.
		c.RSAPublicKey = pub
	default:
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm,
			Message: fmt.Sprintf("unsupported public key type %T", std.PublicKey)}
	}

	for _, u := range std.URIs {
		c.SAN = append(c.SAN, u.String())
	}
	for _, e := range std.EmailAddresses {
		c.SAN = append(c.SAN, e)
	}
	for _, eku := range std.ExtKeyUsage {
		switch eku {
		case x509.ExtKeyUsageCodeSigning:
			c.HasCodeSigningEKU = true
		case x509.ExtKeyUsageTimeStamping:
			c.HasTimeStampingEKU = true
		}
	}

	c.Fulcio = extractFulcio(std)

	return c, nil
}

func fulcioOIDs() []asn1.ObjectIdentifier {
	return []asn1.ObjectIdentifier{OIDFulcioIssuerV2, OIDFulcioIssuerV1, OIDFulcioRepository, OIDFulcioWorkflowRef, OIDFulcioEventName}
}

func oidKnown(id asn1.ObjectIdentifier, set []asn1.ObjectIdentifier) bool {
	for _, s := range set {
		if id.Equal(s) {
			return true
		}
	}
	return false
}

func extractFulcio(std *x509.Certificate) FulcioExtensions {
	var out FulcioExtensions
	for _, ext := range std.Extensions {
		switch {
		case ext.Id.Equal(OIDFulcioIssuerV2):
			out.Issuer = decodeExtensionString(ext.Value)
		case ext.Id.Equal(OIDFulcioIssuerV1) && out.Issuer == "":
			out.Issuer = decodeExtensionString(ext.Value)
		case ext.Id.Equal(OIDFulcioRepository):
			out.Repository = decodeExtensionString(ext.Value)
		case ext.Id.Equal(OIDFulcioWorkflowRef):
			out.WorkflowRef = decodeExtensionString(ext.Value)
		case ext.Id.Equal(OIDFulcioEventName):
			out.EventName = decodeExtensionString(ext.Value)
		}
	}
	return out
}

// decodeExtensionString reads a Fulcio extension value, which is a DER
// UTF8String (or IA5String) wrapping the claim text. If the bytes don't
// parse as a wrapped string, they're used verbatim — some legacy Fulcio
// extensions store raw bytes without ASN.1 framing.
func decodeExtensionString(value []byte) string {
	r := der.NewReader(value)
	tlv, err := r.ReadTLV()
	if err != nil || !r.Empty() {
		return string(value)
	}
	switch tlv.Tag {
	case der.TagUTF8String, der.TagIA5String, der.TagPrintableString:
		return string(tlv.Content)
	default:
		return string(value)
	}
}

func wrapMalformed(msg string, err error) error {
	return &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: msg, Cause: err}
}
