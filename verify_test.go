package verifier_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/testfixture"
)

func ecdsaKey(t *testing.T) (*ecdsa.PrivateKey, error) {
	t.Helper()
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func sha256Sum(key *ecdsa.PrivateKey) [32]byte {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		panic(err) // unreachable: a freshly generated P-256 key always marshals
	}
	return sha256.Sum256(der)
}

type rekorFixture struct {
	bundle    []byte
	trustRoot []byte
	claims    testfixture.FulcioClaims
	digest    [32]byte
}

func buildRekorFixture(t *testing.T, claims testfixture.FulcioClaims, instance string) rekorFixture {
	t.Helper()
	return buildRekorFixtureWithLogID(t, claims, instance, false)
}

func buildRekorFixtureWithLogID(t *testing.T, claims testfixture.FulcioClaims, instance string, withLogID bool) rekorFixture {
	t.Helper()
	now := time.Now().UTC()
	notBefore := now.Add(-time.Hour)
	notAfter := now.Add(time.Hour)

	ca, err := testfixture.NewCA("fulcio-root", notBefore, notAfter)
	require.NoError(t, err)
	leaf, err := testfixture.NewFulcioLeaf(ca, claims, notBefore.Add(time.Minute), notAfter)
	require.NoError(t, err)

	tlogKey, err := ecdsaKey(t)
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], []byte("0123456789abcdef0123456789abcdef"))
	stmt := testfixture.Statement(digest)
	sig, err := testfixture.SignDSSE(leaf.Key, "application/vnd.in-toto+json", stmt)
	require.NoError(t, err)

	logIDSum := sha256Sum(tlogKey)

	var entry *testfixture.RekorEntry
	if withLogID {
		entry, err = testfixture.NewRekorEntryWithLogID(nil, stmt, sig, leaf.DER, logIDSum[:], now)
	} else {
		entry, err = testfixture.NewRekorEntry(nil, stmt, sig, leaf.DER, now)
	}
	require.NoError(t, err)

	trustDoc, err := testfixture.TrustRootDoc(ca, instance, nil, nil, &tlogKey.PublicKey, logIDSum[:], notBefore, notAfter)
	require.NoError(t, err)

	bundleDoc, err := testfixture.BundleDocRekor(leaf.DER, "application/vnd.in-toto+json", stmt, sig, entry)
	require.NoError(t, err)

	return rekorFixture{bundle: bundleDoc, trustRoot: trustDoc, claims: claims, digest: digest}
}

func TestVerifyRekorSuccess(t *testing.T) {
	claims := testfixture.FulcioClaims{
		Issuer:      "https://token.actions.githubusercontent.com",
		Subject:     "https://github.com/example/repo/.github/workflows/build.yml@refs/heads/main",
		WorkflowRef: "example/repo/.github/workflows/build.yml@refs/heads/main",
		Repository:  "example/repo",
		EventName:   "push",
	}
	fx := buildRekorFixture(t, claims, "https://fulcio.example")

	res, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{})
	require.NoError(t, err)
	require.Equal(t, verifier.ProofRekor, res.ProofType)
	require.Equal(t, claims.Issuer, res.OIDCIssuer)
	require.Equal(t, claims.Subject, res.OIDCSubject)
	require.Equal(t, claims.Repository, res.OIDCRepository)
	require.Equal(t, claims.WorkflowRef, res.OIDCWorkflowRef)
	require.Equal(t, claims.EventName, res.OIDCEventName)
	require.Equal(t, fx.digest[:], res.SubjectDigest)
	require.NotEmpty(t, res.Journal())
}

func TestVerifyRekorDigestMismatch(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixture(t, claims, "https://fulcio.example")

	_, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{
		ExpectedDigest: []byte("not-the-right-digest-000000000000"),
	})
	require.Error(t, err)
	requireKind(t, err, verifier.KindDigestMismatch)
}

func TestVerifyRekorIssuerMismatch(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixture(t, claims, "https://fulcio.example")

	_, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{
		ExpectedIssuer: "https://token.actions.githubusercontent.com",
	})
	require.Error(t, err)
	requireKind(t, err, verifier.KindIssuerMismatch)
}

func TestVerifyRekorSubjectMismatch(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixture(t, claims, "https://fulcio.example")

	_, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{
		ExpectedSubject: "someone-else@example.com",
	})
	require.Error(t, err)
	requireKind(t, err, verifier.KindSubjectMismatch)
}

func TestVerifyRekorFulcioInstanceRestriction(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixture(t, claims, "https://fulcio.sigstore.dev")

	_, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{
		FulcioInstance: verifier.FulcioInstanceGithub,
	})
	require.Error(t, err)
	requireKind(t, err, verifier.KindNoActiveTrustRoot)

	res, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{
		FulcioInstance: verifier.FulcioInstancePublicGood,
	})
	require.NoError(t, err)
	require.Equal(t, claims.Subject, res.OIDCSubject)
}

func TestVerifyRekorRequireSETWithoutSET(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixture(t, claims, "https://fulcio.example")

	_, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{RequireSET: true})
	require.Error(t, err)
	requireKind(t, err, verifier.KindTimestampSigInvalid)
}

func TestVerifyRekorSelectsTlogByLogID(t *testing.T) {
	claims := testfixture.FulcioClaims{Issuer: "https://accounts.example.com", Subject: "user@example.com"}
	fx := buildRekorFixtureWithLogID(t, claims, "https://fulcio.example", true)

	res, err := verifier.Verify(fx.bundle, fx.trustRoot, verifier.VerificationOptions{})
	require.NoError(t, err)
	require.Equal(t, claims.Subject, res.OIDCSubject)
}

func TestVerifyRFC3161Success(t *testing.T) {
	now := time.Now().UTC()
	notBefore := now.Add(-time.Hour)
	notAfter := now.Add(time.Hour)

	fulcioCA, err := testfixture.NewCA("fulcio-root", notBefore, notAfter)
	require.NoError(t, err)
	claims := testfixture.FulcioClaims{
		Issuer:  "https://accounts.example.com",
		Subject: "user@example.com",
	}
	leaf, err := testfixture.NewFulcioLeaf(fulcioCA, claims, notBefore.Add(time.Minute), notAfter)
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], []byte("abcdef0123456789abcdef0123456789"))
	stmt := testfixture.Statement(digest)
	sig, err := testfixture.SignDSSE(leaf.Key, "application/vnd.in-toto+json", stmt)
	require.NoError(t, err)

	tsaCA, err := testfixture.NewCA("tsa-root", notBefore, notAfter)
	require.NoError(t, err)
	tsaLeaf, err := testfixture.NewTSALeaf(tsaCA, notBefore.Add(time.Minute), notAfter)
	require.NoError(t, err)

	genTime := now.Truncate(time.Second)
	token, err := testfixture.BuildRFC3161Token(tsaLeaf.Key, tsaLeaf.DER, sig, genTime)
	require.NoError(t, err)

	trustDoc, err := testfixture.TrustRootDoc(fulcioCA, "https://fulcio.example", tsaCA, tsaLeaf.DER, nil, nil, notBefore, notAfter)
	require.NoError(t, err)
	bundleDoc, err := testfixture.BundleDocRFC3161(leaf.DER, "application/vnd.in-toto+json", stmt, sig, token)
	require.NoError(t, err)

	res, err := verifier.Verify(bundleDoc, trustDoc, verifier.VerificationOptions{})
	require.NoError(t, err)
	require.Equal(t, verifier.ProofRFC3161, res.ProofType)
	require.Equal(t, digest[:], res.SubjectDigest)
	require.Equal(t, claims.Issuer, res.OIDCIssuer)
	require.Len(t, res.TSAChainHashes, 2)
	require.NotEmpty(t, res.MessageImprint)
	require.NotEmpty(t, res.Journal())
}

func TestVerifyAmbiguousTimestamp(t *testing.T) {
	_, err := verifier.Verify([]byte(`{
		"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.3",
		"verificationMaterial": {"certificate": {"rawBytes": "bGVhZg=="}},
		"dsseEnvelope": {"payload": "", "payloadType": "", "signatures": []}
	}`), []byte(`{"mediaType":"application/vnd.dev.sigstore.trustedroot+json;version=0.1"}`), verifier.VerificationOptions{})
	require.Error(t, err)
	requireKind(t, err, verifier.KindAmbiguousTimestamp)
}

func requireKind(t *testing.T, err error, kind verifier.Kind) {
	t.Helper()
	var verr *verifier.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, kind, verr.Kind)
}
