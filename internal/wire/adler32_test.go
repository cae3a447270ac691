package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumKnownValue(t *testing.T) {
	// Adler-32 of "Wikipedia" is a commonly cited test vector: 0x11E60398.
	require.Equal(t, uint32(0x11E60398), Checksum([]byte("Wikipedia")))
}

func TestVerifyChecksumZeroAlwaysPasses(t *testing.T) {
	require.True(t, VerifyChecksum([]byte("anything"), 0))
}

func TestVerifyChecksumMismatch(t *testing.T) {
	require.False(t, VerifyChecksum([]byte("anything"), 1))
}

func TestVerifyChecksumMatch(t *testing.T) {
	data := []byte("some section bytes")
	require.True(t, VerifyChecksum(data, Checksum(data)))
}
