package rfc3161

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/certchain"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/testfixture"
)

func buildChain(t *testing.T, notBefore, notAfter time.Time) (*testfixture.CA, *testfixture.Leaf) {
	t.Helper()
	ca, err := testfixture.NewCA("test-tsa-root", notBefore, notAfter)
	require.NoError(t, err)
	leaf, err := testfixture.NewTSALeaf(ca, notBefore, notAfter)
	require.NoError(t, err)
	return ca, leaf
}

func parseTsaChain(t *testing.T, leaf *testfixture.Leaf, ca *testfixture.CA) []*certchain.Certificate {
	t.Helper()
	leafCert, err := certchain.ParseCertificate(leaf.DER)
	require.NoError(t, err)
	caCert, err := certchain.ParseCertificate(ca.DER)
	require.NoError(t, err)
	return []*certchain.Certificate{leafCert, caCert}
}

func TestVerifySucceeds(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	ca, leaf := buildChain(t, notBefore, notAfter)
	chain := parseTsaChain(t, leaf, ca)

	dsseSig := []byte("dsse-signature-bytes")
	genTime := time.Now().UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	res, err := Verify(token, dsseSig, chain)
	require.NoError(t, err)
	require.Equal(t, genTime.Unix(), res.SigningTime.Unix())
	require.Equal(t, ImprintSha256, res.MessageImprintAlgorithm)
	require.Len(t, res.TSAChainHashes, 2)
}

func TestVerifyRejectsEmbeddedCertMismatch(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	ca, leaf := buildChain(t, notBefore, notAfter)
	chain := parseTsaChain(t, leaf, ca)

	_, otherLeaf := buildChain(t, notBefore, notAfter)

	dsseSig := []byte("dsse-signature-bytes")
	genTime := time.Now().UTC().Truncate(time.Second)
	// Token embeds a certificate that isn't the trust-bundle-selected leaf.
	token, err := testfixture.BuildRFC3161Token(leaf.Key, otherLeaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	_, err = Verify(token, dsseSig, chain)
	require.Error(t, err)
	var verr *verifier.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, verifier.KindTsaCertMismatch, verr.Kind)
}

func TestVerifyRejectsImprintMismatch(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	ca, leaf := buildChain(t, notBefore, notAfter)
	chain := parseTsaChain(t, leaf, ca)

	genTime := time.Now().UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, []byte("original-signature"), genTime)
	require.NoError(t, err)

	_, err = Verify(token, []byte("a-different-signature"), chain)
	require.Error(t, err)
	var verr *verifier.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, verifier.KindImprintMismatch, verr.Kind)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	ca, leaf := buildChain(t, notBefore, notAfter)
	chain := parseTsaChain(t, leaf, ca)

	dsseSig := []byte("dsse-signature-bytes")
	genTime := time.Now().UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	// Flip a byte deep enough in the token to land inside the signature
	// octet string without corrupting the ASN.1 structure's lengths.
	tampered := append([]byte(nil), token...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = Verify(tampered, dsseSig, chain)
	require.Error(t, err)
}

func TestVerifyRejectsChainNotValidAtSigningTime(t *testing.T) {
	notBefore := time.Now().Add(-2 * time.Hour)
	notAfter := time.Now().Add(-time.Hour)
	ca, leaf := buildChain(t, notBefore, notAfter)
	chain := parseTsaChain(t, leaf, ca)

	dsseSig := []byte("dsse-signature-bytes")
	// genTime falls after the chain's validity window, so the reference-time
	// chain check (run against TSTInfo.gen_time, never a wall clock) fails
	// even though notAfter itself is already in the past.
	genTime := notAfter.Add(30 * time.Minute).UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	_, err = Verify(token, dsseSig, chain)
	require.Error(t, err)
}

func TestPeekSigningTime(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	_, leaf := buildChain(t, notBefore, notAfter)

	dsseSig := []byte("dsse-signature-bytes")
	genTime := time.Now().UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	got, err := PeekSigningTime(token)
	require.NoError(t, err)
	require.Equal(t, genTime.Unix(), got.Unix())
}

func TestVerifyRejectsShortChain(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	_, leaf := buildChain(t, notBefore, notAfter)
	leafCert, err := certchain.ParseCertificate(leaf.DER)
	require.NoError(t, err)

	dsseSig := []byte("dsse-signature-bytes")
	genTime := time.Now().UTC().Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(leaf.Key, leaf.DER, dsseSig, genTime)
	require.NoError(t, err)

	_, err = Verify(token, dsseSig, []*certchain.Certificate{leafCert})
	require.Error(t, err)
	var verr *verifier.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, verifier.KindChainBroken, verr.Kind)
}
