// Package oidc implements the OIDC identity extractor (spec §4.9, C9):
// pulling issuer/subject/repository/workflow-ref/event-name claims out of
// a Fulcio leaf certificate's extensions and Subject Alternative Name.
package oidc

import "github.com/letmehateu/automata-slsa-sigstore-verifier/internal/certchain"

// Claims holds the OIDC identity fields spec §3 attaches to
// VerificationResult.
type Claims struct {
	Issuer      string
	Subject     string
	WorkflowRef string
	Repository  string
	EventName   string
}

// Extract reads the claims from leaf's SAN and Fulcio extensions, per
// spec §4.9. All fields default to the empty string when absent — none of
// them are required for a bundle to verify.
func Extract(leaf *certchain.Certificate) Claims {
	var subject string
	if len(leaf.SAN) > 0 {
		subject = leaf.SAN[0]
	}
	return Claims{
		Issuer:      leaf.Fulcio.Issuer,
		Subject:     subject,
		WorkflowRef: leaf.Fulcio.WorkflowRef,
		Repository:  leaf.Fulcio.Repository,
		EventName:   leaf.Fulcio.EventName,
	}
}
