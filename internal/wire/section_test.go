package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectionHeaderRoundTrip(t *testing.T) {
	h := SectionHeader{Type: "sectors", NextOffset: 4096, Size: 1024}
	b := EncodeSectionHeader(h)
	require.Len(t, b, SectionHeaderSize)

	got, err := DecodeSectionHeader(b)
	require.NoError(t, err)
	require.Equal(t, h.Type, got.Type)
	require.Equal(t, h.NextOffset, got.NextOffset)
	require.Equal(t, h.Size, got.Size)
}

func TestSectionHeaderRejectsBadChecksum(t *testing.T) {
	b := EncodeSectionHeader(SectionHeader{Type: "table", NextOffset: 1, Size: 2})
	b[len(b)-1] ^= 0xff
	_, err := DecodeSectionHeader(b)
	require.Error(t, err)
}

func TestSectionHeaderRejectsWrongLength(t *testing.T) {
	_, err := DecodeSectionHeader(make([]byte, 10))
	require.Error(t, err)
}

func TestTrimTagStopsAtNUL(t *testing.T) {
	b := make([]byte, 16)
	copy(b, "volume")
	require.Equal(t, "volume", trimTag(b))
}

func TestKnownSectionTypesCoversCoreTags(t *testing.T) {
	for _, tag := range []string{"header", "header2", "volume", "table", "table2", "sectors", "hash", "digest", "done"} {
		require.True(t, KnownSectionTypes[tag], tag)
	}
}
