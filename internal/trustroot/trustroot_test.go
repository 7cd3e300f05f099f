package trustroot

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func caDoc(uri, start, end string) string {
	endField := ""
	if end != "" {
		endField = `,"end":"` + end + `"`
	}
	return `{"certificateAuthorities": [{` +
		`"uri": "` + uri + `", ` +
		`"validFor": {"start":"` + start + `"` + endField + `}, ` +
		`"certChain": {"certificates": [{"rawBytes": "` + b64("root-der") + `"}]}` +
		`}]}`
}

func TestLoadSingleJSONDocument(t *testing.T) {
	bundle, err := Load([]byte(caDoc("https://fulcio.sigstore.dev", "2021-01-01T00:00:00Z", "")))
	require.NoError(t, err)
	require.Len(t, bundle.CertificateAuthorities, 1)
	require.Equal(t, FulcioInstancePublicGood, bundle.CertificateAuthorities[0].FulcioInstance)
}

func TestLoadJSONLMergesRecords(t *testing.T) {
	line1 := caDoc("https://fulcio.sigstore.dev", "2021-01-01T00:00:00Z", "2022-01-01T00:00:00Z")
	line2 := caDoc("https://fulcio.github.com", "2022-01-01T00:00:00Z", "")
	data := line1 + "\n" + line2 + "\n"
	bundle, err := Load([]byte(data))
	require.NoError(t, err)
	require.Len(t, bundle.CertificateAuthorities, 2)
	require.Equal(t, FulcioInstanceGithub, bundle.CertificateAuthorities[1].FulcioInstance)
}

func TestSelectCAPicksBracketingWindow(t *testing.T) {
	line1 := caDoc("https://fulcio.sigstore.dev", "2021-01-01T00:00:00Z", "2022-01-01T00:00:00Z")
	line2 := caDoc("https://fulcio.sigstore.dev", "2022-01-01T00:00:00Z", "")
	bundle, err := Load([]byte(line1 + "\n" + line2))
	require.NoError(t, err)

	signingTime := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	ca, err := SelectCA(bundle, signingTime, FulcioInstancePublicGood)
	require.NoError(t, err)
	require.Equal(t, 2021, ca.ValidFor.Start.Year())
}

func TestSelectCANoActiveWindow(t *testing.T) {
	bundle, err := Load([]byte(caDoc("https://fulcio.sigstore.dev", "2021-01-01T00:00:00Z", "2022-01-01T00:00:00Z")))
	require.NoError(t, err)
	_, err = SelectCA(bundle, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), FulcioInstanceAny)
	require.Error(t, err)
}

func TestSelectCAInstanceRestriction(t *testing.T) {
	bundle, err := Load([]byte(caDoc("https://fulcio.github.com", "2021-01-01T00:00:00Z", "")))
	require.NoError(t, err)
	_, err = SelectCA(bundle, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), FulcioInstancePublicGood)
	require.Error(t, err)
}

func TestSelectCATieBreakPrefersNewestStart(t *testing.T) {
	line1 := caDoc("https://fulcio.sigstore.dev", "2020-01-01T00:00:00Z", "")
	line2 := caDoc("https://fulcio.sigstore.dev", "2021-01-01T00:00:00Z", "")
	bundle, err := Load([]byte(line1 + "\n" + line2))
	require.NoError(t, err)

	ca, err := SelectCA(bundle, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), FulcioInstanceAny)
	require.NoError(t, err)
	require.Equal(t, 2021, ca.ValidFor.Start.Year())
}

func TestSelectTlogMatchesLogID(t *testing.T) {
	raw := `{
		"tlogs": [{
			"hashAlgorithm": "SHA2_256",
			"publicKey": {"rawBytes": "` + b64("pubkey") + `", "validFor": {"start": "2021-01-01T00:00:00Z"}},
			"logId": {"keyId": "` + b64("logid-a") + `"}
		}]
	}`
	bundle, err := Load([]byte(raw))
	require.NoError(t, err)

	tl, err := SelectTlog(bundle, []byte("logid-a"), time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "SHA2_256", tl.HashAlgorithm)

	_, err = SelectTlog(bundle, []byte("logid-b"), time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}
