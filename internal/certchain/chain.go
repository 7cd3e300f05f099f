package certchain

import (
	"crypto/x509"
	"time"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/sigverify"
)

// VerifyChain walks leaf-to-root, verifying each certificate's signature
// against its issuer's public key, that every certificate is valid at
// referenceTime, and that the root is self-signed, per spec §4.4.
//
// chain[0] must be the leaf; chain[len(chain)-1] the root. The caller
// supplies referenceTime explicitly (the bundle's signing time, never a
// wall clock) since the zkVM guest has no clock of its own.
func VerifyChain(chain []*Certificate, referenceTime time.Time) error {
	if len(chain) < 2 {
		return &verifier.Error{Kind: verifier.KindChainBroken, Message: "chain must contain at least a leaf and a root"}
	}

	for _, c := range chain {
		if referenceTime.Before(c.NotBefore) {
			return &verifier.Error{Kind: verifier.KindNotYetValid, Message: "certificate not yet valid at reference time"}
		}
		if referenceTime.After(c.NotAfter) {
			return &verifier.Error{Kind: verifier.KindExpired, Message: "certificate expired before reference time"}
		}
	}

	for i := 0; i < len(chain)-1; i++ {
		child := chain[i]
		issuer := chain[i+1]
		if child.Issuer != issuer.Subject {
			return &verifier.Error{Kind: verifier.KindChainBroken,
				Message: "issuer/subject name mismatch in chain"}
		}
		if err := verifyCertSignature(issuer, child.SignatureAlg, child.TBS, child.Signature); err != nil {
			return &verifier.Error{Kind: verifier.KindChainBroken, Message: "chain signature verification failed", Cause: err}
		}
	}

	root := chain[len(chain)-1]
	if !root.SelfSigned {
		return &verifier.Error{Kind: verifier.KindRootNotSelfSigned, Message: "root certificate is not self-signed"}
	}
	if err := verifyCertSignature(root, root.SignatureAlg, root.TBS, root.Signature); err != nil {
		return &verifier.Error{Kind: verifier.KindRootNotSelfSigned, Message: "root self-signature is invalid", Cause: err}
	}

	return nil
}

func verifyCertSignature(issuer *Certificate, alg x509.SignatureAlgorithm, tbs, sig []byte) error {
	switch {
	case issuer.PublicKey != nil:
		return sigverify.VerifyECDSA(issuer.PublicKey, alg, tbs, sig)
	case issuer.RSAPublicKey != nil:
		return sigverify.VerifyRSA(issuer.RSAPublicKey, alg, tbs, sig)
	default:
		return &verifier.Error{Kind: verifier.KindUnsupportedSignatureAlgorithm, Message: "issuer certificate has no usable public key"}
	}
}

// RequireLeafEKU enforces that the leaf certificate in chain carries the
// extended key usage the caller's verification context requires (code
// signing for the Fulcio identity certificate, time stamping for the TSA
// certificate), per spec §4.4's EKU enforcement rule.
func RequireLeafEKU(leaf *Certificate, codeSigning bool) error {
	if codeSigning && !leaf.HasCodeSigningEKU {
		return &verifier.Error{Kind: verifier.KindMissingEKU, Message: "leaf certificate missing codeSigning EKU"}
	}
	if !codeSigning && !leaf.HasTimeStampingEKU {
		return &verifier.Error{Kind: verifier.KindTsaEkuMissing, Message: "leaf certificate missing timeStamping EKU"}
	}
	return nil
}
