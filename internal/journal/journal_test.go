package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	return &Result{
		Timestamp:              1763454699,
		ProofType:              ProofRekor,
		CertificateHashes:      [][32]byte{{1}, {2}, {3}},
		SubjectDigest:          []byte{0xAA, 0xBB, 0xCC},
		SubjectDigestAlgorithm: 1,
		OIDCIssuer:             "https://token.actions.githubusercontent.com",
		OIDCSubject:            "repo:org/repo:ref:refs/heads/main",
		OIDCWorkflowRef:        "org/repo/.github/workflows/release.yml@refs/heads/main",
		OIDCRepository:         "org/repo",
		OIDCEventName:          "push",
		TSAChainHashes:         nil,
		MessageImprintAlgorithm: 0,
		MessageImprint:          nil,
		RekorLogID:              [32]byte{9, 9, 9},
		RekorLogIndex:           585383802,
		RekorEntryIndex:         707288064,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := sampleResult()
	encoded := Encode(r)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, r, decoded)
}

func TestHeaderLayout(t *testing.T) {
	r := sampleResult()
	encoded := Encode(r)
	require.GreaterOrEqual(t, len(encoded), headerLen)
	require.Equal(t, byte(ProofRekor), encoded[8])
	for _, b := range encoded[9:41] {
		require.Equal(t, byte(0), b)
	}
}

func TestEmptyDynamicFieldsRoundTrip(t *testing.T) {
	r := &Result{
		Timestamp:         0,
		ProofType:         ProofNone,
		CertificateHashes: nil,
		SubjectDigest:     nil,
		OIDCIssuer:        "",
		TSAChainHashes:    nil,
		MessageImprint:    nil,
	}
	encoded := Encode(r)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded.CertificateHashes)
	require.Empty(t, decoded.SubjectDigest)
	require.Equal(t, "", decoded.OIDCIssuer)
}
