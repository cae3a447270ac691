package ioutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLE16RoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutLE16(b, 0xabcd)
	require.Equal(t, uint16(0xabcd), LE16(b))
}

func TestLE32RoundTrip(t *testing.T) {
	b := make([]byte, 4)
	PutLE32(b, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), LE32(b))
}

func TestLE64RoundTrip(t *testing.T) {
	b := make([]byte, 8)
	PutLE64(b, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), LE64(b))
}

func TestLE64WritesAllEightBytes(t *testing.T) {
	// The C original's revert routine drops the top byte; this must not.
	b := make([]byte, 8)
	PutLE64(b, 0xff00000000000000)
	require.Equal(t, byte(0xff), b[7])
	require.Equal(t, uint64(0xff00000000000000), LE64(b))
}

func TestLE16DoesNotOrCombine(t *testing.T) {
	b := []byte{0x01, 0x02}
	require.Equal(t, uint16(0x0201), LE16(b))
}
