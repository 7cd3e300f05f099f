package der

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSequenceAndInteger(t *testing.T) {
	// SEQUENCE { INTEGER 5 }
	raw := []byte{0x30, 0x03, 0x02, 0x01, 0x05}
	r := NewReader(raw)
	seq, rawSeq, err := r.ReadSequence()
	require.NoError(t, err)
	require.Equal(t, raw, rawSeq)
	require.True(t, r.Empty())

	content, err := seq.ReadInteger()
	require.NoError(t, err)
	require.Equal(t, []byte{0x05}, content)
	require.True(t, seq.Empty())
}

func TestRejectIndefiniteLength(t *testing.T) {
	// SEQUENCE with indefinite length (0x80) is BER, not DER.
	raw := []byte{0x30, 0x80, 0x02, 0x01, 0x05, 0x00, 0x00}
	r := NewReader(raw)
	_, _, err := r.ReadSequence()
	require.Error(t, err)
}

func TestRejectNonMinimalLength(t *testing.T) {
	// Long-form length encoding a value < 128 is non-canonical.
	raw := []byte{0x30, 0x81, 0x03, 0x02, 0x01, 0x05}
	r := NewReader(raw)
	_, _, err := r.ReadSequence()
	require.Error(t, err)
}

func TestRejectTruncated(t *testing.T) {
	raw := []byte{0x30, 0x05, 0x02, 0x01, 0x05}
	r := NewReader(raw)
	_, _, err := r.ReadSequence()
	require.Error(t, err)
}

func TestDecodeOID(t *testing.T) {
	// 1.2.840.113549.1.9.16.1.4 (id-ct-TSTInfo)
	raw := []byte{0x06, 0x0B, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x09, 0x10, 0x01, 0x04}
	r := NewReader(raw)
	oid, err := r.ReadObjectIdentifier()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 840, 113549, 1, 9, 16, 1, 4}, oid)
}

func TestMaxDepthEnforced(t *testing.T) {
	// Build MaxDepth+3 nested empty SEQUENCEs so unwrapping all of them
	// would exceed the depth cap.
	buf := []byte{0x30, 0x00}
	for i := 0; i < MaxDepth+2; i++ {
		buf = append([]byte{0x30, byte(len(buf))}, buf...)
	}
	r := NewReader(buf)
	var err error
	for i := 0; i < MaxDepth+3; i++ {
		r, _, err = r.ReadSequence()
		if err != nil {
			break
		}
	}
	require.Error(t, err)
}

func TestNormalizeUnsigned(t *testing.T) {
	require.Equal(t, []byte{0x80}, NormalizeUnsigned([]byte{0x00, 0x80}))
	require.Equal(t, []byte{0x7F}, NormalizeUnsigned([]byte{0x7F}))
}

func TestHexRoundTrip(t *testing.T) {
	b := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	s := EncodeHex(b)
	got, err := DecodeHex(s)
	require.NoError(t, err)
	require.Equal(t, b, got)
}
