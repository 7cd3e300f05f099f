package verifier

// VerificationOptions carries the caller-supplied checks spec §6.3 defines.
// Every field is optional; an unset field is purely informational and
// produces no failure.
type VerificationOptions struct {
	// ExpectedDigest, when set, must equal the subject digest byte-for-byte
	// or Verify fails with KindDigestMismatch.
	ExpectedDigest []byte

	// ExpectedIssuer, when set, must equal the OIDC issuer claim or Verify
	// fails with KindIssuerMismatch.
	ExpectedIssuer string

	// ExpectedSubject, when set, must equal the OIDC subject claim or
	// Verify fails with KindSubjectMismatch.
	ExpectedSubject string

	// RequireSET additionally requires a Rekor signed-entry-timestamp to be
	// present and valid for Rekor-proofed bundles (spec §4.7 step 4 marks
	// this RECOMMENDED but optional by default; callers needing the
	// stronger guarantee opt in here).
	RequireSET bool

	// FulcioInstance restricts trust-root CA selection (spec §4.11) to a
	// specific Fulcio deployment. Bundles carry nothing that names which
	// instance signed them, so the caller supplies it; the zero value,
	// FulcioInstanceAny, leaves every active CA eligible.
	FulcioInstance FulcioInstance
}

// FulcioInstance selects which Fulcio deployment's certificate authorities
// are eligible trust-root candidates, per spec §4.11.
type FulcioInstance uint8

const (
	FulcioInstanceAny FulcioInstance = iota
	FulcioInstanceGithub
	FulcioInstancePublicGood
)
