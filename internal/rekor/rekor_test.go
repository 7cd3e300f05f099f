package rekor

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

// parentHash computes the RFC 6962 interior node hash SHA256(0x01 || left || right).
func parentHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 1+64)
	buf = append(buf, 0x01)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

func TestSingleLeafTreeRootEqualsLeafHash(t *testing.T) {
	body := []byte(`{"apiVersion":"0.0.1","kind":"dsse"}`)
	lh := LeafHash(body)

	err := VerifyInclusion(lh, InclusionProof{
		LogIndex: 0,
		TreeSize: 1,
		RootHash: lh,
		Hashes:   nil,
	})
	require.NoError(t, err)
}

func TestSingleLeafTreeRejectsNonEmptyProof(t *testing.T) {
	body := []byte("leaf")
	lh := LeafHash(body)
	err := VerifyInclusion(lh, InclusionProof{
		LogIndex: 0,
		TreeSize: 1,
		RootHash: lh,
		Hashes:   [][32]byte{{1}},
	})
	require.Error(t, err)
}

func TestTwoLeafTreeBothPositions(t *testing.T) {
	lh0 := LeafHash([]byte("left"))
	lh1 := LeafHash([]byte("right"))
	root := parentHash(lh0, lh1)

	require.NoError(t, VerifyInclusion(lh0, InclusionProof{
		LogIndex: 0, TreeSize: 2, RootHash: root, Hashes: [][32]byte{lh1},
	}))
	require.NoError(t, VerifyInclusion(lh1, InclusionProof{
		LogIndex: 1, TreeSize: 2, RootHash: root, Hashes: [][32]byte{lh0},
	}))
}

func TestTamperedSiblingRejected(t *testing.T) {
	lh0 := LeafHash([]byte("left"))
	lh1 := LeafHash([]byte("right"))
	root := parentHash(lh0, lh1)
	tampered := lh1
	tampered[0] ^= 0xFF

	err := VerifyInclusion(lh0, InclusionProof{
		LogIndex: 0, TreeSize: 2, RootHash: root, Hashes: [][32]byte{tampered},
	})
	require.Error(t, err)
}

func TestLeafIndexOutOfRange(t *testing.T) {
	lh := LeafHash([]byte("x"))
	err := VerifyInclusion(lh, InclusionProof{LogIndex: 5, TreeSize: 3, RootHash: lh})
	require.Error(t, err)
}

func TestBuildCanonicalBodyShape(t *testing.T) {
	envelope := []byte(`{"payload":"xx","payloadType":"application/vnd.in-toto+json","signatures":[]}`)
	payload := []byte(`{"subject":[]}`)
	out, err := BuildCanonicalBody(envelope, payload, []byte("sig"), []byte("cert"))
	require.NoError(t, err)
	require.Contains(t, string(out), `"apiVersion":"0.0.1"`)
	require.Contains(t, string(out), `"kind":"dsse"`)

	envHash := sha256.Sum256(envelope)
	require.Contains(t, string(out), hexEncode(envHash[:]))
}
