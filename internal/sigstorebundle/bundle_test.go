package sigstorebundle

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

const hex64Zero = "0000000000000000000000000000000000000000000000000000000000000000"[:64]

func validRekorJSON() string {
	return `{
		"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.3",
		"verificationMaterial": {
			"certificate": {"rawBytes": "` + b64("leaf-der") + `"},
			"tlogEntries": [{
				"logIndex": 1,
				"integratedTime": 1700000000,
				"inclusionProof": {
					"logIndex": 1,
					"treeSize": 1,
					"rootHash": "` + hex64Zero + `",
					"hashes": []
				},
				"canonicalizedBody": "` + b64(`{"apiVersion":"0.0.1","kind":"dsse"}`) + `"
			}]
		},
		"dsseEnvelope": {
			"payload": "` + b64(`{"subject":[]}`) + `",
			"payloadType": "application/vnd.in-toto+json",
			"signatures": [{"sig": "` + b64("sig-bytes") + `"}]
		}
	}`
}

func TestParseRejectsUnknownMediaType(t *testing.T) {
	_, err := Parse([]byte(`{"mediaType": "application/json"}`))
	require.Error(t, err)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte(`{"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.1"}`))
	require.Error(t, err)
}

func TestParseRejectsNeitherTimestampKind(t *testing.T) {
	raw := `{
		"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.3",
		"verificationMaterial": {"certificate": {"rawBytes": "` + b64("leaf") + `"}},
		"dsseEnvelope": {
			"payload": "` + b64(`{}`) + `",
			"payloadType": "x",
			"signatures": [{"sig": "` + b64("s") + `"}]
		}
	}`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParseRejectsMissingLeafCertificate(t *testing.T) {
	raw := `{"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.4"}`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParseAcceptsWellFormedRekorBundle(t *testing.T) {
	b, err := Parse([]byte(validRekorJSON()))
	require.NoError(t, err)
	require.Equal(t, []byte("leaf-der"), b.LeafCertificateDER)
	require.Len(t, b.TlogEntries, 1)
	require.Empty(t, b.RFC3161Timestamps)
	require.Equal(t, "application/vnd.in-toto+json", b.DSSEPayloadType)
	require.Len(t, b.DSSESignatures, 1)
}
