// Package sigstorebundle parses the Sigstore bundle JSON input (spec §6.1):
// media type validation, the signing leaf certificate, the mutually
// exclusive RFC 3161/Rekor timestamp material, and the DSSE envelope.
package sigstorebundle

import (
	"encoding/json"
	"strings"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
)

const mediaTypePrefix = "application/vnd.dev.sigstore.bundle+json;version="

var supportedVersions = map[string]bool{"0.3": true, "0.4": true}

type rawBundle struct {
	MediaType             string `json:"mediaType"`
	VerificationMaterial struct {
		Certificate struct {
			RawBytes string `json:"rawBytes"`
		} `json:"certificate"`
		TimestampVerificationData struct {
			RFC3161Timestamps []struct {
				SignedTimestamp string `json:"signedTimestamp"`
			} `json:"rfc3161Timestamps"`
		} `json:"timestampVerificationData"`
		TlogEntries []struct {
			LogIndex       int64  `json:"logIndex"`
			LogID          struct {
				KeyID string `json:"keyId"`
			} `json:"logId"`
			IntegratedTime int64  `json:"integratedTime"`
			InclusionProof struct {
				LogIndex  int64    `json:"logIndex"`
				TreeSize  int64    `json:"treeSize"`
				RootHash  string   `json:"rootHash"`
				Hashes    []string `json:"hashes"`
			} `json:"inclusionProof"`
			CanonicalizedBody string `json:"canonicalizedBody"`
			InclusionPromise  struct {
				SignedEntryTimestamp string `json:"signedEntryTimestamp"`
			} `json:"inclusionPromise"`
		} `json:"tlogEntries"`
	} `json:"verificationMaterial"`
	DSSEEnvelope struct {
		Payload     string `json:"payload"`
		PayloadType string `json:"payloadType"`
		Signatures  []struct {
			Sig string `json:"sig"`
		} `json:"signatures"`
	} `json:"dsseEnvelope"`
}

// InclusionProof is the decoded form of a tlog entry's inclusion proof.
type InclusionProof struct {
	LogIndex int64
	TreeSize int64
	RootHash [32]byte
	Hashes   [][32]byte
}

// TlogEntry is the decoded form of one verificationMaterial.tlogEntries
// element (spec §6.1).
type TlogEntry struct {
	LogIndex                int64
	LogID                   []byte // decoded logId.keyId, nil when the bundle omits it
	IntegratedTime          int64
	InclusionProof          InclusionProof
	CanonicalizedBody       []byte
	SignedEntryTimestamp    []byte
	HasSignedEntryTimestamp bool
}

// Bundle is the decoded, byte-level view of a Sigstore bundle, per spec §3
// and §6.1.
type Bundle struct {
	LeafCertificateDER []byte

	RFC3161Timestamps [][]byte // decoded signedTimestamp CMS blobs
	TlogEntries       []TlogEntry

	DSSEPayloadType string
	DSSEPayload     []byte
	DSSESignatures  [][]byte
}

// Parse decodes and validates a Sigstore bundle JSON document, per spec
// §4.8 step 1 and §6.1.
func Parse(data []byte) (*Bundle, error) {
	var raw rawBundle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "bundle is not valid JSON", Cause: err}
	}

	if !strings.HasPrefix(raw.MediaType, mediaTypePrefix) {
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedMediaType, Message: "unrecognized bundle mediaType: " + raw.MediaType}
	}
	version := strings.TrimPrefix(raw.MediaType, mediaTypePrefix)
	if !supportedVersions[version] {
		return nil, &verifier.Error{Kind: verifier.KindUnsupportedMediaType, Message: "unsupported bundle version: " + version}
	}

	if raw.VerificationMaterial.Certificate.RawBytes == "" {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "bundle is missing verificationMaterial.certificate.rawBytes"}
	}
	leafDER, err := der.DecodeBase64(raw.VerificationMaterial.Certificate.RawBytes)
	if err != nil {
		return nil, wrapDecode("verificationMaterial.certificate.rawBytes", err)
	}

	b := &Bundle{LeafCertificateDER: leafDER}

	for _, ts := range raw.VerificationMaterial.TimestampVerificationData.RFC3161Timestamps {
		tok, terr := der.DecodeBase64(ts.SignedTimestamp)
		if terr != nil {
			return nil, wrapDecode("rfc3161Timestamps[].signedTimestamp", terr)
		}
		b.RFC3161Timestamps = append(b.RFC3161Timestamps, tok)
	}

	for _, te := range raw.VerificationMaterial.TlogEntries {
		entry := TlogEntry{LogIndex: te.LogIndex, IntegratedTime: te.IntegratedTime}

		if te.LogID.KeyID != "" {
			logID, lerr := der.DecodeBase64(te.LogID.KeyID)
			if lerr != nil {
				return nil, wrapDecode("tlogEntries[].logId.keyId", lerr)
			}
			entry.LogID = logID
		}

		body, berr := der.DecodeBase64(te.CanonicalizedBody)
		if berr != nil {
			return nil, wrapDecode("tlogEntries[].canonicalizedBody", berr)
		}
		entry.CanonicalizedBody = body

		root, rerr := decodeHash32(te.InclusionProof.RootHash)
		if rerr != nil {
			return nil, rerr
		}
		var hashes [][32]byte
		for _, h := range te.InclusionProof.Hashes {
			hv, herr := decodeHash32(h)
			if herr != nil {
				return nil, herr
			}
			hashes = append(hashes, hv)
		}
		entry.InclusionProof = InclusionProof{
			LogIndex: te.InclusionProof.LogIndex,
			TreeSize: te.InclusionProof.TreeSize,
			RootHash: root,
			Hashes:   hashes,
		}

		if te.InclusionPromise.SignedEntryTimestamp != "" {
			set, serr := der.DecodeBase64(te.InclusionPromise.SignedEntryTimestamp)
			if serr != nil {
				return nil, wrapDecode("tlogEntries[].inclusionPromise.signedEntryTimestamp", serr)
			}
			entry.SignedEntryTimestamp = set
			entry.HasSignedEntryTimestamp = true
		}

		b.TlogEntries = append(b.TlogEntries, entry)
	}

	if len(b.RFC3161Timestamps) > 0 == (len(b.TlogEntries) > 0) {
		return nil, &verifier.Error{Kind: verifier.KindAmbiguousTimestamp,
			Message: "bundle must contain exactly one of rfc3161Timestamps or tlogEntries"}
	}

	if raw.DSSEEnvelope.Payload == "" {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "bundle is missing dsseEnvelope.payload"}
	}
	payload, perr := der.DecodeBase64(raw.DSSEEnvelope.Payload)
	if perr != nil {
		return nil, wrapDecode("dsseEnvelope.payload", perr)
	}
	b.DSSEPayloadType = raw.DSSEEnvelope.PayloadType
	b.DSSEPayload = payload

	if len(raw.DSSEEnvelope.Signatures) == 0 {
		return nil, &verifier.Error{Kind: verifier.KindInvalidDSSESignature, Message: "dsseEnvelope has no signatures"}
	}
	for _, s := range raw.DSSEEnvelope.Signatures {
		sig, serr := der.DecodeBase64(s.Sig)
		if serr != nil {
			return nil, wrapDecode("dsseEnvelope.signatures[].sig", serr)
		}
		b.DSSESignatures = append(b.DSSESignatures, sig)
	}

	return b, nil
}

func wrapDecode(field string, cause error) error {
	return &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "failed to decode " + field, Cause: cause}
}

func decodeHash32(hexOrB64 string) ([32]byte, error) {
	var out [32]byte
	b, err := der.DecodeHex(hexOrB64)
	if err != nil {
		b, err = der.DecodeBase64(hexOrB64)
		if err != nil {
			return out, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "expected hex or base64 hash value"}
		}
	}
	if len(b) != 32 {
		return out, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "hash value is not 32 bytes"}
	}
	copy(out[:], b)
	return out, nil
}
