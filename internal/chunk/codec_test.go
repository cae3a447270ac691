package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripCompressible(t *testing.T) {
	plain := bytes.Repeat([]byte("forensic image chunk data "), 200)
	stored, compressed, empty, err := Encode(plain, 6, true)
	require.NoError(t, err)
	require.True(t, compressed)
	require.False(t, empty)
	require.Less(t, len(stored), len(plain))

	got, err := Decode(stored, compressed)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestEncodeDecodeRoundTripIncompressible(t *testing.T) {
	plain := make([]byte, 256)
	for i := range plain {
		plain[i] = byte(i * 97)
	}
	stored, compressed, _, err := Encode(plain, 6, true)
	require.NoError(t, err)

	got, err := Decode(stored, compressed)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestEncodeDetectsEmptyBlock(t *testing.T) {
	plain := bytes.Repeat([]byte{0x00}, 4096)
	_, _, empty, err := Encode(plain, 6, true)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestDecodeRawRejectsBadChecksum(t *testing.T) {
	// Level 0 stores the zlib stream uncompressed, so the deflated form is
	// always larger than the input and Encode falls back to raw + Adler-32.
	plain := make([]byte, 64)
	for i := range plain {
		plain[i] = byte(i * 31)
	}
	stored, compressed, _, err := Encode(plain, 0, false)
	require.NoError(t, err)
	require.False(t, compressed)

	stored[0] ^= 0xff
	_, err = Decode(stored, false)
	require.Error(t, err)
}

func TestDecodeCompressedRejectsCorruption(t *testing.T) {
	plain := bytes.Repeat([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 100)
	stored, compressed, _, err := Encode(plain, 6, true)
	require.NoError(t, err)
	require.True(t, compressed)

	corrupt := append([]byte(nil), stored...)
	corrupt[len(corrupt)/2] ^= 0xff
	_, err = Decode(corrupt, true)
	require.Error(t, err)
}
