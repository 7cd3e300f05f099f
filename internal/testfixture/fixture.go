// Package testfixture builds synthetic Sigstore bundles, trust roots, RFC
// 3161 tokens, and Rekor inclusion proofs entirely in-process, with
// crypto/x509 and crypto/ecdsa standing in for a real Fulcio/TSA/Rekor
// deployment. It exists so verify_test.go and the internal package tests
// can exercise Verify end to end without a network call or a vendored
// sigstore-go dependency — the same role the teacher's
// internal/testutil/virtualsigstore package played for its own Sigstore
// integration tests, minus the protobuf-specs types that package built on.
package testfixture

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/certchain"
	"github.com/letmehateu/automata-slsa-sigstore-verifier/internal/rekor"
)

// CA is a synthetic self-signed root, playing the part of a Fulcio or TSA
// root certificate authority.
type CA struct {
	Cert *x509.Certificate
	DER  []byte
	Key  *ecdsa.PrivateKey
}

// Leaf is a synthetic end-entity certificate issued by a CA.
type Leaf struct {
	Cert *x509.Certificate
	DER  []byte
	Key  *ecdsa.PrivateKey
}

// NewCA generates a self-signed P-256 root certificate valid over
// [notBefore, notAfter].
func NewCA(commonName string, notBefore, notAfter time.Time) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("testfixture: generate CA key: %w", err)
	}
	serial, err := randSerial()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := createCertificateLowS(template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("testfixture: create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse CA certificate: %w", err)
	}
	return &CA{Cert: cert, DER: der, Key: key}, nil
}

// FulcioClaims carries the OIDC identity values baked into a leaf's Fulcio
// extensions and SAN, mirroring internal/oidc.Claims.
type FulcioClaims struct {
	Issuer      string
	Subject     string // encoded as the leaf's SAN URI
	WorkflowRef string
	Repository  string
	EventName   string
}

// NewFulcioLeaf issues a code-signing leaf certificate under ca, carrying
// the Fulcio OIDC extension OIDs internal/certchain recognizes.
func NewFulcioLeaf(ca *CA, claims FulcioClaims, notBefore, notAfter time.Time) (*Leaf, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("testfixture: generate leaf key: %w", err)
	}
	serial, err := randSerial()
	if err != nil {
		return nil, err
	}

	var extraExts []pkix.Extension
	if claims.Issuer != "" {
		ext, eerr := utf8Extension(certchain.OIDFulcioIssuerV2, claims.Issuer)
		if eerr != nil {
			return nil, eerr
		}
		extraExts = append(extraExts, ext)
	}
	if claims.Repository != "" {
		ext, eerr := utf8Extension(certchain.OIDFulcioRepository, claims.Repository)
		if eerr != nil {
			return nil, eerr
		}
		extraExts = append(extraExts, ext)
	}
	if claims.WorkflowRef != "" {
		ext, eerr := utf8Extension(certchain.OIDFulcioWorkflowRef, claims.WorkflowRef)
		if eerr != nil {
			return nil, eerr
		}
		extraExts = append(extraExts, ext)
	}
	if claims.EventName != "" {
		ext, eerr := utf8Extension(certchain.OIDFulcioEventName, claims.EventName)
		if eerr != nil {
			return nil, eerr
		}
		extraExts = append(extraExts, ext)
	}

	template := &x509.Certificate{
		SerialNumber:    serial,
		Subject:         pkix.Name{CommonName: "sigstore-intoto-leaf"},
		NotBefore:       notBefore,
		NotAfter:        notAfter,
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtKeyUsage:     []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		ExtraExtensions: extraExts,
	}
	if claims.Subject != "" {
		if u, perr := url.Parse(claims.Subject); perr == nil {
			template.URIs = []*url.URL{u}
		}
	}

	der, err := createCertificateLowS(template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("testfixture: create leaf certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse leaf certificate: %w", err)
	}
	return &Leaf{Cert: cert, DER: der, Key: key}, nil
}

// NewTSALeaf issues a timeStamping leaf certificate under ca.
func NewTSALeaf(ca *CA, notBefore, notAfter time.Time) (*Leaf, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("testfixture: generate tsa leaf key: %w", err)
	}
	serial, err := randSerial()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "sigstore-tsa-leaf"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := createCertificateLowS(template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("testfixture: create tsa leaf certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse tsa leaf certificate: %w", err)
	}
	return &Leaf{Cert: cert, DER: der, Key: key}, nil
}

func utf8Extension(oid asn1.ObjectIdentifier, value string) (pkix.Extension, error) {
	raw, err := asn1.MarshalWithParams(value, "utf8")
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("testfixture: marshal extension %v: %w", oid, err)
	}
	return pkix.Extension{Id: oid, Critical: false, Value: raw}, nil
}

func randSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("testfixture: generate serial: %w", err)
	}
	return serial, nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

// createCertificateLowS wraps x509.CreateCertificate, retrying until the
// produced signature has a low-S value. crypto/ecdsa's signer doesn't
// canonicalize S, but internal/sigverify.VerifyECDSA rejects malleable
// (high-S) signatures per spec §4.3, so a fixture signed without this
// check would fail chain verification roughly half the time.
func createCertificateLowS(template, parent *x509.Certificate, pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey) ([]byte, error) {
	half := new(big.Int).Rsh(priv.Curve.Params().N, 1)
	for attempt := 0; attempt < 64; attempt++ {
		der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, priv)
		if err != nil {
			return nil, err
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		var sig ecdsaSignature
		if _, err := asn1.Unmarshal(cert.Signature, &sig); err != nil {
			return nil, err
		}
		if sig.S.Cmp(half) <= 0 {
			return der, nil
		}
	}
	return nil, fmt.Errorf("testfixture: could not produce a low-S certificate signature")
}

// signLowS signs digest with priv, retrying until the signature satisfies
// the same low-S policy (see createCertificateLowS).
func signLowS(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	half := new(big.Int).Rsh(priv.Curve.Params().N, 1)
	for attempt := 0; attempt < 64; attempt++ {
		sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
		if err != nil {
			return nil, err
		}
		var parsed ecdsaSignature
		if _, err := asn1.Unmarshal(sig, &parsed); err != nil {
			return nil, err
		}
		if parsed.S.Cmp(half) <= 0 {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("testfixture: could not produce a low-S signature")
}

// Statement builds a minimal in-toto SLSA statement JSON payload whose
// subject[0].digest carries a single sha256 entry.
func Statement(sha256Digest [32]byte) []byte {
	stmt := map[string]any{
		"_type":         "https://in-toto.io/Statement/v1",
		"predicateType": "https://slsa.dev/provenance/v1",
		"subject": []map[string]any{{
			"name": "example-artifact",
			"digest": map[string]string{
				"sha256": hexEncode(sha256Digest[:]),
			},
		}},
		"predicate": map[string]any{},
	}
	out, err := json.Marshal(stmt)
	if err != nil {
		panic(err) // unreachable: stmt contains only marshalable values
	}
	return out
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// DSSEPAE reproduces internal/dsseverify.PAE without importing that package.
func DSSEPAE(payloadType string, payload []byte) []byte {
	out := make([]byte, 0, len(payloadType)+len(payload)+32)
	out = append(out, "DSSEv1"...)
	out = appendPAEField(out, []byte(payloadType))
	out = appendPAEField(out, payload)
	return out
}

func appendPAEField(dst, field []byte) []byte {
	dst = append(dst, ' ')
	dst = append(dst, fmt.Sprintf("%d", len(field))...)
	dst = append(dst, ' ')
	dst = append(dst, field...)
	return dst
}

// SignDSSE signs payload (of the given payloadType) with key and returns
// the raw ASN.1 ECDSA signature bytes a bundle's dsseEnvelope.signatures[].sig
// carries.
func SignDSSE(key *ecdsa.PrivateKey, payloadType string, payload []byte) ([]byte, error) {
	message := DSSEPAE(payloadType, payload)
	digest := sha256.Sum256(message)
	sig, err := signLowS(key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("testfixture: sign dsse envelope: %w", err)
	}
	return sig, nil
}

// RekorEntry is a synthetic tlog entry: canonical body, leaf hash, and a
// single-leaf (tree_size=1) RFC 6962 inclusion proof rooted at that leaf.
// A single-leaf tree is a valid, spec-documented edge case (tree_size=1
// carries an empty audit path) and keeps fixture construction independent
// of any particular tree shape.
type RekorEntry struct {
	CanonicalBody  []byte
	LogID          []byte // logId.keyId, set by NewRekorEntryWithLogID; nil otherwise
	LogIndex       int64
	TreeSize       int64
	RootHash       [32]byte
	IntegratedTime int64
}

// NewRekorEntry builds a single-leaf Rekor inclusion proof for the DSSE
// envelope described by payload/sigBytes/leafDER, carrying no explicit
// logId (exercising SelectTlogByTime's validity-window fallback).
func NewRekorEntry(envelopeJSON, payload, sigBytes, leafDER []byte, integratedTime time.Time) (*RekorEntry, error) {
	return NewRekorEntryWithLogID(envelopeJSON, payload, sigBytes, leafDER, nil, integratedTime)
}

// NewRekorEntryWithLogID is NewRekorEntry but stamps the entry with logID
// (a tlog's logId.keyId, typically SHA256(tlog public key DER)), exercising
// SelectTlog's logID-disambiguated selection.
func NewRekorEntryWithLogID(envelopeJSON, payload, sigBytes, leafDER, logID []byte, integratedTime time.Time) (*RekorEntry, error) {
	body, err := rekor.BuildCanonicalBody(envelopeJSON, payload, sigBytes, leafDER)
	if err != nil {
		return nil, err
	}
	leafHash := rekor.LeafHash(body)
	return &RekorEntry{
		CanonicalBody:  body,
		LogID:          logID,
		LogIndex:       0,
		TreeSize:       1,
		RootHash:       leafHash,
		IntegratedTime: integratedTime.Unix(),
	}, nil
}

// TrustRootDoc builds a Sigstore TrustedRoot JSON document (spec §6.2)
// pinning ca as the sole active certificate authority and tsaCA (together
// with tsaLeafDER, its issued timestamping leaf) as the sole active
// timestamp authority, each valid over [start, end]. A TimestampAuthority's
// certChain must hold the full chain including the TSA leaf itself — unlike
// a CertificateAuthority's chain, nothing else in a bundle supplies it.
func TrustRootDoc(ca *CA, fulcioInstanceURI string, tsaCA *CA, tsaLeafDER []byte, tlogKey *ecdsa.PublicKey, logID []byte, start, end time.Time) ([]byte, error) {
	var tlogKeyDER []byte
	if tlogKey != nil {
		der, err := x509.MarshalPKIXPublicKey(tlogKey)
		if err != nil {
			return nil, fmt.Errorf("testfixture: marshal tlog public key: %w", err)
		}
		tlogKeyDER = der
	}

	doc := map[string]any{
		"mediaType": "application/vnd.dev.sigstore.trustedroot+json;version=0.1",
	}
	if ca != nil {
		doc["certificateAuthorities"] = []map[string]any{{
			"uri":     fulcioInstanceURI,
			"subject": map[string]string{"organization": "example"},
			"validFor": map[string]string{
				"start": start.Format(time.RFC3339),
				"end":   end.Format(time.RFC3339),
			},
			"certChain": map[string]any{
				"certificates": []map[string]string{{
					"rawBytes": base64.StdEncoding.EncodeToString(ca.DER),
				}},
			},
		}}
	}
	if tsaCA != nil {
		certs := []map[string]string{}
		if tsaLeafDER != nil {
			certs = append(certs, map[string]string{"rawBytes": base64.StdEncoding.EncodeToString(tsaLeafDER)})
		}
		certs = append(certs, map[string]string{"rawBytes": base64.StdEncoding.EncodeToString(tsaCA.DER)})
		doc["timestampAuthorities"] = []map[string]any{{
			"validFor": map[string]string{
				"start": start.Format(time.RFC3339),
				"end":   end.Format(time.RFC3339),
			},
			"certChain": map[string]any{
				"certificates": certs,
			},
		}}
	}
	if tlogKey != nil {
		doc["tlogs"] = []map[string]any{{
			"baseUrl":       "https://rekor.example",
			"hashAlgorithm": "sha256",
			"publicKey": map[string]any{
				"rawBytes": base64.StdEncoding.EncodeToString(tlogKeyDER),
				"validFor": map[string]string{
					"start": start.Format(time.RFC3339),
					"end":   end.Format(time.RFC3339),
				},
			},
			"logId": map[string]string{
				"keyId": base64.StdEncoding.EncodeToString(logID),
			},
		}}
	}

	return json.Marshal(doc)
}

// BundleDocRFC3161 assembles a Sigstore bundle JSON document (spec §6.1)
// proved by an RFC 3161 timestamp token rather than a Rekor inclusion proof.
func BundleDocRFC3161(leafDER []byte, payloadType string, payload, sig, tokenDER []byte) ([]byte, error) {
	doc := map[string]any{
		"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.3",
		"verificationMaterial": map[string]any{
			"certificate": map[string]string{
				"rawBytes": base64.StdEncoding.EncodeToString(leafDER),
			},
			"timestampVerificationData": map[string]any{
				"rfc3161Timestamps": []map[string]string{{
					"signedTimestamp": base64.StdEncoding.EncodeToString(tokenDER),
				}},
			},
		},
		"dsseEnvelope": map[string]any{
			"payload":     base64.StdEncoding.EncodeToString(payload),
			"payloadType": payloadType,
			"signatures": []map[string]string{{
				"sig": base64.StdEncoding.EncodeToString(sig),
			}},
		},
	}
	return json.Marshal(doc)
}

// BundleDocRekor assembles a Sigstore bundle JSON document (spec §6.1)
// proved by a Rekor inclusion proof.
func BundleDocRekor(leafDER []byte, payloadType string, payload, sig []byte, entry *RekorEntry) ([]byte, error) {
	tlogEntry := map[string]any{
		"logIndex":       entry.LogIndex,
		"integratedTime": entry.IntegratedTime,
		"inclusionProof": map[string]any{
			"logIndex": entry.LogIndex,
			"treeSize": entry.TreeSize,
			"rootHash": base64.StdEncoding.EncodeToString(entry.RootHash[:]),
			"hashes":   []string{},
		},
		"canonicalizedBody": base64.StdEncoding.EncodeToString(entry.CanonicalBody),
	}
	if entry.LogID != nil {
		tlogEntry["logId"] = map[string]string{
			"keyId": base64.StdEncoding.EncodeToString(entry.LogID),
		}
	}

	doc := map[string]any{
		"mediaType": "application/vnd.dev.sigstore.bundle+json;version=0.3",
		"verificationMaterial": map[string]any{
			"certificate": map[string]string{
				"rawBytes": base64.StdEncoding.EncodeToString(leafDER),
			},
			"tlogEntries": []map[string]any{tlogEntry},
		},
		"dsseEnvelope": map[string]any{
			"payload":     base64.StdEncoding.EncodeToString(payload),
			"payloadType": payloadType,
			"signatures": []map[string]string{{
				"sig": base64.StdEncoding.EncodeToString(sig),
			}},
		},
	}
	return json.Marshal(doc)
}
