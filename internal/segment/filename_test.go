package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-forensics/ewfgo/internal/wire"
)

func TestExtensionDigitRange(t *testing.T) {
	ext, err := Extension(wire.VariantEWF1, 1)
	require.NoError(t, err)
	require.Equal(t, "E01", ext)

	ext, err = Extension(wire.VariantEWF1, 99)
	require.NoError(t, err)
	require.Equal(t, "E99", ext)
}

func TestExtensionLetterRangeAfter99(t *testing.T) {
	ext, err := Extension(wire.VariantEWF1, 100)
	require.NoError(t, err)
	require.Equal(t, "EAA", ext)

	ext, err = Extension(wire.VariantEWF1, 101)
	require.NoError(t, err)
	require.Equal(t, "EAB", ext)

	ext, err = Extension(wire.VariantEWF1, 125) // 100 + 25 -> EAZ
	require.NoError(t, err)
	require.Equal(t, "EAZ", ext)

	ext, err = Extension(wire.VariantEWF1, 126) // rolls into second letter
	require.NoError(t, err)
	require.Equal(t, "EBA", ext)
}

func TestExtensionRejectsSegmentZero(t *testing.T) {
	_, err := Extension(wire.VariantEWF1, 0)
	require.Error(t, err)
}

func TestExtensionRejectsRangeOverflow(t *testing.T) {
	_, err := Extension(wire.VariantEWF1, 100+26*26)
	require.Error(t, err)
}

// Extension/parseSuffix round-trip across the whole legal numbering
// range: whatever Extension names a segment, Glob's own
// suffix parser must recover the same number from.
func TestExtensionParseSuffixRoundTrip(t *testing.T) {
	for n := uint16(1); n < 100+26*26; n++ {
		ext, err := Extension(wire.VariantEWF1, n)
		require.NoError(t, err)
		got, ok := parseSuffix(ext)
		require.True(t, ok, "extension %q", ext)
		require.Equal(t, n, got, "extension %q", ext)
	}
}

func TestGlobFindsAndOrdersSegments(t *testing.T) {
	dir := t.TempDir()
	names := []string{"image.E01", "image.E03", "image.E02"}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	// An unrelated file sharing the stem but not the lead letter must be
	// excluded.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.txt"), []byte("x"), 0o644))

	got, err := Glob(filepath.Join(dir, "image.E01"))
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "image.E01"),
		filepath.Join(dir, "image.E02"),
		filepath.Join(dir, "image.E03"),
	}, got)
}

func TestGlobRejectsMalformedPath(t *testing.T) {
	_, err := Glob(filepath.Join(t.TempDir(), "image"))
	require.Error(t, err)
}
