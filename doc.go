// Package verifier implements a pure, deterministic Sigstore bundle
// verification engine suitable for execution inside a zkVM guest.
//
// Verify parses a Sigstore bundle (v0.3/v0.4), checks the DSSE-signed
// in-toto SLSA provenance statement against a Fulcio-issued identity
// certificate, verifies exactly one of an RFC 3161 timestamp or a Rekor
// transparency-log inclusion proof, and encodes the result as a canonical,
// ABI-decodable journal for on-chain consumption.
//
// # Basic usage
//
//	result, err := verifier.Verify(bundleBytes, trustBundleBytes, verifier.VerificationOptions{
//		ExpectedIssuer: "https://token.actions.githubusercontent.com",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	journalBytes := result.Journal()
//
// The package performs no I/O, no clock reads, and no network access: all
// inputs (bundle bytes, trust bundle bytes, verification options) are
// supplied by the caller, and every timestamp check runs against a
// reference time derived from the inputs themselves. This mirrors the
// constraint a zkVM guest operates under, where non-determinism of any
// kind breaks proof reproducibility.
package verifier
