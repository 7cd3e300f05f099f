package sigverify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
)

// VerifyRSA checks a PKCS#1 v1.5 signature, used by RFC 3161 TSAs that sign
// with RSA rather than ECDSA (spec §4.6 permits either key type on the TSA
// certificate).
func VerifyRSA(pub *rsa.PublicKey, alg x509.SignatureAlgorithm, message, sig []byte) error {
	var hashed []byte
	var hashFn crypto.Hash
	switch alg {
	case x509.SHA256WithRSA:
		sum := sha256.Sum256(message)
		hashed, hashFn = sum[:], crypto.SHA256
	case x509.SHA384WithRSA:
		sum := sha512.Sum384(message)
		hashed, hashFn = sum[:], crypto.SHA384
	case x509.SHA512WithRSA:
		sum := sha512.Sum512(message)
		hashed, hashFn = sum[:], crypto.SHA512
	default:
		return &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm,
			Message: fmt.Sprintf("unsupported RSA signature algorithm %v", alg)}
	}
	if err := rsa.VerifyPKCS1v15(pub, hashFn, hashed, sig); err != nil {
		return &verifier.Error{Kind: verifier.KindTimestampSigInvalid, Message: "rsa signature verification failed", Cause: err}
	}
	return nil
}
