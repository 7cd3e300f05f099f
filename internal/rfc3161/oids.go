package rfc3161

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

var (
	oidSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidContentTypeCT = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidTSTInfo       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}

	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
)

// hashByOID returns the digest of msg under the hash algorithm identified
// by oid, per spec §4.6 step 3/4 (both the CMS signed-attribute digest and
// the TSTInfo message imprint are hash-algorithm-parameterized this way).
func hashByOID(oid asn1.ObjectIdentifier, msg []byte) ([]byte, error) {
	switch {
	case oid.Equal(oidSHA1):
		sum := sha1.Sum(msg)
		return sum[:], nil
	case oid.Equal(oidSHA256):
		sum := sha256.Sum256(msg)
		return sum[:], nil
	case oid.Equal(oidSHA384):
		sum := sha512.Sum384(msg)
		return sum[:], nil
	case oid.Equal(oidSHA512):
		sum := sha512.Sum512(msg)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("rfc3161: unsupported hash algorithm %v", oid)
	}
}

// signatureAlgorithmFromOID maps a CMS SignerInfo signatureAlgorithm OID to
// the stdlib x509.SignatureAlgorithm constants internal/sigverify expects.
func signatureAlgorithmFromOID(oid asn1.ObjectIdentifier) (x509.SignatureAlgorithm, error) {
	switch {
	case oid.Equal(oidECDSAWithSHA256):
		return x509.ECDSAWithSHA256, nil
	case oid.Equal(oidECDSAWithSHA384):
		return x509.ECDSAWithSHA384, nil
	case oid.Equal(oidSHA256WithRSA):
		return x509.SHA256WithRSA, nil
	case oid.Equal(oidSHA384WithRSA):
		return x509.SHA384WithRSA, nil
	case oid.Equal(oidSHA512WithRSA):
		return x509.SHA512WithRSA, nil
	default:
		return 0, fmt.Errorf("rfc3161: unsupported signature algorithm %v", oid)
	}
}
