package testfixture

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"time"
)

// These mirror the unexported OID table in internal/rfc3161/oids.go — the
// RFC 3161/CMS arcs are public standard identifiers, not anything specific
// to that package, so duplicating them here avoids reaching into another
// package's internals.
var (
	oidSignedDataFixture     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidContentTypeCTFixture  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigestFixture  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidTSTInfoFixture        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	oidSHA256Fixture         = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidECDSAWithSHA256Fixture = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidTestPolicyFixture     = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 99, 1}
)

func mustMarshal(v any) []byte {
	b, err := asn1.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testfixture: asn1 marshal: %v", err))
	}
	return b
}

func derLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte(n & 0xff)}, buf...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(buf))}, buf...)
}

func derTLV(tag byte, content []byte) []byte {
	out := []byte{tag}
	out = append(out, derLength(len(content))...)
	out = append(out, content...)
	return out
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func sequence(parts ...[]byte) []byte {
	return derTLV(0x30, concatBytes(parts...))
}

func set(parts ...[]byte) []byte {
	return derTLV(0x31, concatBytes(parts...))
}

// explicit0 wraps a complete inner TLV in an EXPLICIT [0] constructed tag.
func explicit0(inner []byte) []byte {
	return derTLV(0xA0, inner)
}

// implicitSet0 wraps already-encoded attribute TLVs in an IMPLICIT [0]
// constructed tag standing in for SET OF, matching SignerInfo.signedAttrs.
func implicitSet0(parts ...[]byte) []byte {
	return derTLV(0xA0, concatBytes(parts...))
}

// implicitCerts0 wraps one or more raw certificate DER TLVs in an IMPLICIT
// [0] constructed tag standing in for SignedData.certificates.
func implicitCerts0(certDER ...[]byte) []byte {
	return derTLV(0xA0, concatBytes(certDER...))
}

func nullParam() []byte {
	return derTLV(0x05, nil)
}

func algorithmIdentifier(oid asn1.ObjectIdentifier) []byte {
	return sequence(mustMarshal(oid), nullParam())
}

// BuildRFC3161Token constructs a DER CMS ContentInfo(SignedData) RFC 3161
// timestamp token over dsseSignature (the message imprint input, per the
// verifier's binding of the token to the DSSE signature bytes), signed by
// tsaKey under tsaLeafDER, with genTime as TSTInfo's generation time. The
// embedded certificates field carries tsaLeafDER so the verifier's
// embedded-cert cross-check has something to match against.
func BuildRFC3161Token(tsaKey *ecdsa.PrivateKey, tsaLeafDER []byte, dsseSignature []byte, genTime time.Time) ([]byte, error) {
	imprint := sha256.Sum256(dsseSignature)

	genTimeTLV, err := asn1.MarshalWithParams(genTime.UTC().Truncate(time.Second), "generalized")
	if err != nil {
		return nil, fmt.Errorf("testfixture: marshal genTime: %w", err)
	}

	serial, err := randSerial()
	if err != nil {
		return nil, err
	}

	tstInfo := sequence(
		mustMarshal(int64(1)),
		mustMarshal(oidTestPolicyFixture),
		sequence(
			algorithmIdentifier(oidSHA256Fixture),
			mustMarshal(imprint[:]),
		),
		mustMarshal(serial),
		genTimeTLV,
	)

	eContent := mustMarshal(tstInfo) // OCTET STRING wrapping the TSTInfo DER
	digest := sha256.Sum256(tstInfo)

	contentTypeAttr := sequence(
		mustMarshal(oidContentTypeCTFixture),
		set(mustMarshal(oidTSTInfoFixture)),
	)
	messageDigestAttr := sequence(
		mustMarshal(oidMessageDigestFixture),
		set(mustMarshal(digest[:])),
	)
	signedAttrsImplicit := implicitSet0(contentTypeAttr, messageDigestAttr)

	// DER requires the signature to run over the attributes re-tagged as a
	// universal SET OF rather than the implicit [0] form they're encoded as.
	retagged := append([]byte(nil), signedAttrsImplicit...)
	retagged[0] = 0x31
	sigDigest := sha256.Sum256(retagged)
	sig, err := signLowS(tsaKey, sigDigest[:])
	if err != nil {
		return nil, fmt.Errorf("testfixture: sign timestamp token: %w", err)
	}

	signerInfo := sequence(
		mustMarshal(int64(1)),                 // version
		mustMarshal(int64(1)),                 // sid placeholder; the verifier skips this TLV unread
		algorithmIdentifier(oidSHA256Fixture),  // digestAlgorithm
		signedAttrsImplicit,
		algorithmIdentifier(oidECDSAWithSHA256Fixture), // signatureAlgorithm
		mustMarshal(sig),
	)

	encapContentInfo := sequence(
		mustMarshal(oidTSTInfoFixture),
		explicit0(eContent),
	)

	signedData := sequence(
		mustMarshal(int64(1)), // version
		set(),                 // digestAlgorithms
		encapContentInfo,
		implicitCerts0(tsaLeafDER),
		set(signerInfo),
	)

	contentInfo := sequence(
		mustMarshal(oidSignedDataFixture),
		explicit0(signedData),
	)

	return contentInfo, nil
}
