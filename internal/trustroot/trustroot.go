// Package trustroot parses the Sigstore TrustedRoot document (JSON or
// JSONL, spec §6.2) and selects the active CA/TSA/transparency-log entry
// for a given signing time (C11, spec §4.11).
package trustroot

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	verifier "github.com/letmehateu/automata-slsa-sigstore-verifier"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/der"
)

// FulcioInstance restricts a CertificateAuthority candidate pool (spec §4.11).
type FulcioInstance uint8

const (
	FulcioInstanceAny FulcioInstance = iota
	FulcioInstanceGithub
	FulcioInstancePublicGood
)

// ValidFor is the inclusive validity window `[Start, End?]` the Sigstore
// TrustedRoot schema attaches to every CA/TSA/tlog entry (spec §6.2). A
// zero End means "currently active with no upper bound" (spec §4.11).
type ValidFor struct {
	Start time.Time
	End   time.Time // zero value means unbounded
}

func (v ValidFor) contains(t time.Time) bool {
	if t.Before(v.Start) {
		return false
	}
	if !v.End.IsZero() && t.After(v.End) {
		return false
	}
	return true
}

// CertificateAuthority is one certificateAuthorities[] entry: an ordered
// leaf-absent CA chain (intermediate(s) + root, DER), a validity window,
// and the Fulcio instance it belongs to.
type CertificateAuthority struct {
	CertChainDER   [][]byte
	ValidFor       ValidFor
	FulcioInstance FulcioInstance
}

// TimestampAuthority is one timestampAuthorities[] entry.
type TimestampAuthority struct {
	CertChainDER [][]byte
	ValidFor     ValidFor
}

// TransparencyLog is one tlogs[] entry.
type TransparencyLog struct {
	LogID         []byte
	PublicKeyDER  []byte
	HashAlgorithm string
	ValidFor      ValidFor
}

// TrustBundle is the parsed union of every record in the trust-root input
// (one or more TrustedRoot-shaped JSON documents, spec §6.2).
type TrustBundle struct {
	CertificateAuthorities []CertificateAuthority
	TimestampAuthorities   []TimestampAuthority
	Tlogs                  []TransparencyLog
}

type rawValidFor struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

type rawCertificate struct {
	RawBytes string `json:"rawBytes" yaml:"rawBytes"`
}

type rawCertChain struct {
	Certificates []rawCertificate `json:"certificates" yaml:"certificates"`
}

type rawPublicKey struct {
	RawBytes string      `json:"rawBytes" yaml:"rawBytes"`
	ValidFor rawValidFor `json:"validFor" yaml:"validFor"`
}

type rawLogID struct {
	KeyID string `json:"keyId" yaml:"keyId"`
}

type rawCertificateAuthority struct {
	URI     string `json:"uri" yaml:"uri"`
	Subject struct {
		Organization string `json:"organization" yaml:"organization"`
	} `json:"subject" yaml:"subject"`
	ValidFor  rawValidFor  `json:"validFor" yaml:"validFor"`
	CertChain rawCertChain `json:"certChain" yaml:"certChain"`
}

type rawTimestampAuthority struct {
	ValidFor  rawValidFor  `json:"validFor" yaml:"validFor"`
	CertChain rawCertChain `json:"certChain" yaml:"certChain"`
}

type rawTlog struct {
	BaseURL       string       `json:"baseUrl" yaml:"baseUrl"`
	HashAlgorithm string       `json:"hashAlgorithm" yaml:"hashAlgorithm"`
	PublicKey     rawPublicKey `json:"publicKey" yaml:"publicKey"`
	LogID         rawLogID     `json:"logId" yaml:"logId"`
}

type rawTrustedRoot struct {
	MediaType              string                    `json:"mediaType" yaml:"mediaType"`
	CertificateAuthorities []rawCertificateAuthority `json:"certificateAuthorities" yaml:"certificateAuthorities"`
	TimestampAuthorities   []rawTimestampAuthority    `json:"timestampAuthorities" yaml:"timestampAuthorities"`
	Tlogs                  []rawTlog                 `json:"tlogs" yaml:"tlogs"`
}

// Load parses a trust-root document in any of the shapes the Sigstore
// TrustedRoot schema is distributed in (spec §6.2): a single JSON object,
// newline-delimited JSON objects (JSONL), or a single YAML document.
//
// Detection order: whole-buffer JSON first; then, if the buffer has more
// than one non-blank line and every line parses independently as JSON,
// JSONL; otherwise whole-buffer YAML (which also accepts plain JSON, so
// this also covers the single-document case of any non-JSONL input a
// stricter JSON parse rejected only due to trailing YAML-style comments).
func Load(data []byte) (*TrustBundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "trust-root input is empty"}
	}

	var docs []rawTrustedRoot
	var whole rawTrustedRoot
	lines := nonBlankLines(trimmed)

	switch {
	case json.Unmarshal(trimmed, &whole) == nil:
		docs = append(docs, whole)
	case len(lines) > 1 && allLinesAreJSON(lines):
		for _, line := range lines {
			var doc rawTrustedRoot
			if jerr := json.Unmarshal(line, &doc); jerr != nil {
				return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "trust-root line is not valid JSON", Cause: jerr}
			}
			docs = append(docs, doc)
		}
	case yaml.Unmarshal(trimmed, &whole) == nil:
		docs = append(docs, whole)
	default:
		return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "trust-root input is neither valid JSON, JSONL, nor YAML"}
	}

	bundle := &TrustBundle{}
	for _, doc := range docs {
		for _, ca := range doc.CertificateAuthorities {
			parsed, err := parseCA(ca)
			if err != nil {
				return nil, err
			}
			bundle.CertificateAuthorities = append(bundle.CertificateAuthorities, parsed)
		}
		for _, tsa := range doc.TimestampAuthorities {
			chain, err := parseCertChain(tsa.CertChain)
			if err != nil {
				return nil, err
			}
			vf, err := parseValidFor(tsa.ValidFor)
			if err != nil {
				return nil, err
			}
			bundle.TimestampAuthorities = append(bundle.TimestampAuthorities, TimestampAuthority{CertChainDER: chain, ValidFor: vf})
		}
		for _, tl := range doc.Tlogs {
			parsed, err := parseTlog(tl)
			if err != nil {
				return nil, err
			}
			bundle.Tlogs = append(bundle.Tlogs, parsed)
		}
	}

	return bundle, nil
}

func nonBlankLines(data []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}

func allLinesAreJSON(lines [][]byte) bool {
	for _, line := range lines {
		var probe json.RawMessage
		if json.Unmarshal(line, &probe) != nil {
			return false
		}
	}
	return true
}

func parseCA(ca rawCertificateAuthority) (CertificateAuthority, error) {
	chain, err := parseCertChain(ca.CertChain)
	if err != nil {
		return CertificateAuthority{}, err
	}
	vf, err := parseValidFor(ca.ValidFor)
	if err != nil {
		return CertificateAuthority{}, err
	}
	return CertificateAuthority{
		CertChainDER:   chain,
		ValidFor:       vf,
		FulcioInstance: classifyInstance(ca.URI),
	}, nil
}

func classifyInstance(uri string) FulcioInstance {
	lower := strings.ToLower(uri)
	if strings.Contains(lower, "github") {
		return FulcioInstanceGithub
	}
	if strings.Contains(lower, "sigstore.dev") || strings.Contains(lower, "sigstage") {
		return FulcioInstancePublicGood
	}
	return FulcioInstanceAny
}

func parseCertChain(c rawCertChain) ([][]byte, error) {
	out := make([][]byte, 0, len(c.Certificates))
	for _, cert := range c.Certificates {
		b, err := der.DecodeBase64(cert.RawBytes)
		if err != nil {
			return nil, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "trust-root certChain entry is not valid base64", Cause: err}
		}
		out = append(out, b)
	}
	return out, nil
}

func parseTlog(tl rawTlog) (TransparencyLog, error) {
	keyDER, err := der.DecodeBase64(tl.PublicKey.RawBytes)
	if err != nil {
		return TransparencyLog{}, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "tlog publicKey.rawBytes is not valid base64", Cause: err}
	}
	logID, err := der.DecodeBase64(tl.LogID.KeyID)
	if err != nil {
		return TransparencyLog{}, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "tlog logId.keyId is not valid base64", Cause: err}
	}
	vf, err := parseValidFor(tl.PublicKey.ValidFor)
	if err != nil {
		return TransparencyLog{}, err
	}
	return TransparencyLog{
		LogID:         logID,
		PublicKeyDER:  keyDER,
		HashAlgorithm: tl.HashAlgorithm,
		ValidFor:      vf,
	}, nil
}

func parseValidFor(v rawValidFor) (ValidFor, error) {
	var out ValidFor
	if v.Start == "" {
		return out, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "trust-root entry is missing validFor.start"}
	}
	start, err := time.Parse(time.RFC3339, v.Start)
	if err != nil {
		return out, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "validFor.start is not RFC3339", Cause: err}
	}
	out.Start = start
	if v.End != "" {
		end, eerr := time.Parse(time.RFC3339, v.End)
		if eerr != nil {
			return out, &verifier.Error{Kind: verifier.KindMalformedEncoding, Message: "validFor.end is not RFC3339", Cause: eerr}
		}
		out.End = end
	}
	return out, nil
}

// SelectCA implements §4.11 for certificateAuthorities: unique entry whose
// validity window brackets signingTime, restricted to instance when
// instance != FulcioInstanceAny, tie-broken by newest ValidFor.Start.
func SelectCA(bundle *TrustBundle, signingTime time.Time, instance FulcioInstance) (*CertificateAuthority, error) {
	var best *CertificateAuthority
	for i := range bundle.CertificateAuthorities {
		ca := &bundle.CertificateAuthorities[i]
		if instance != FulcioInstanceAny && ca.FulcioInstance != instance {
			continue
		}
		if !ca.ValidFor.contains(signingTime) {
			continue
		}
		if best == nil {
			best = ca
			continue
		}
		if ca.ValidFor.Start.After(best.ValidFor.Start) {
			best = ca
		} else if ca.ValidFor.Start.Equal(best.ValidFor.Start) {
			return nil, &verifier.Error{Kind: verifier.KindAmbiguousTrustRoot, Message: "multiple certificate authorities active at signing time with identical validFor.start"}
		}
	}
	if best == nil {
		return nil, &verifier.Error{Kind: verifier.KindNoActiveTrustRoot, Message: "no certificate authority active at signing time"}
	}
	return best, nil
}

// SelectTSA implements §4.11 for timestampAuthorities.
func SelectTSA(bundle *TrustBundle, signingTime time.Time) (*TimestampAuthority, error) {
	var best *TimestampAuthority
	for i := range bundle.TimestampAuthorities {
		tsa := &bundle.TimestampAuthorities[i]
		if !tsa.ValidFor.contains(signingTime) {
			continue
		}
		if best == nil {
			best = tsa
			continue
		}
		if tsa.ValidFor.Start.After(best.ValidFor.Start) {
			best = tsa
		} else if tsa.ValidFor.Start.Equal(best.ValidFor.Start) {
			return nil, &verifier.Error{Kind: verifier.KindAmbiguousTrustRoot, Message: "multiple timestamp authorities active at signing time with identical validFor.start"}
		}
	}
	if best == nil {
		return nil, &verifier.Error{Kind: verifier.KindNoActiveTrustRoot, Message: "no timestamp authority active at signing time"}
	}
	return best, nil
}

// SelectTlogByTime implements §4.11 for tlogs when the bundle entry carries
// no log_id of its own — selection falls back to the same bracketing-
// window-by-signingTime rule used for SelectTSA, and the chosen log's
// public key is the one the SET is verified against.
func SelectTlogByTime(bundle *TrustBundle, signingTime time.Time) (*TransparencyLog, error) {
	var best *TransparencyLog
	for i := range bundle.Tlogs {
		tl := &bundle.Tlogs[i]
		if !tl.ValidFor.contains(signingTime) {
			continue
		}
		if best == nil {
			best = tl
			continue
		}
		if tl.ValidFor.Start.After(best.ValidFor.Start) {
			best = tl
		} else if tl.ValidFor.Start.Equal(best.ValidFor.Start) {
			return nil, &verifier.Error{Kind: verifier.KindAmbiguousTrustRoot, Message: "multiple transparency logs active at signing time with identical validFor.start"}
		}
	}
	if best == nil {
		return nil, &verifier.Error{Kind: verifier.KindNoActiveTrustRoot, Message: "no transparency log active at signing time"}
	}
	return best, nil
}

// SelectTlog implements §4.11 for tlogs when a log_id is available to
// disambiguate: only logs whose logId.keyId bytes equal logID are
// considered, and the validity-window selection is then applied to them.
// The orchestrator calls this whenever a bundle's tlog entry carries a
// logId.keyId of its own.
func SelectTlog(bundle *TrustBundle, logID []byte, signingTime time.Time) (*TransparencyLog, error) {
	var best *TransparencyLog
	for i := range bundle.Tlogs {
		tl := &bundle.Tlogs[i]
		if !bytes.Equal(tl.LogID, logID) {
			continue
		}
		if !tl.ValidFor.contains(signingTime) {
			continue
		}
		if best == nil {
			best = tl
			continue
		}
		if tl.ValidFor.Start.After(best.ValidFor.Start) {
			best = tl
		} else if tl.ValidFor.Start.Equal(best.ValidFor.Start) {
			return nil, &verifier.Error{Kind: verifier.KindAmbiguousTrustRoot, Message: "multiple transparency logs active at signing time with identical validFor.start"}
		}
	}
	if best == nil {
		return nil, &verifier.Error{Kind: verifier.KindNoActiveTrustRoot, Message: "no transparency log with matching logID active at signing time"}
	}
	return best, nil
}
