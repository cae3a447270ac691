package ewf

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-forensics/ewfgo/internal/metatext"
	"github.com/go-forensics/ewfgo/internal/segment"
)

func acquire(t *testing.T, path string, header *metatext.Values, opts CreateOptions, data []byte) {
	t.Helper()
	h, err := Create(path, header, opts)
	require.NoError(t, err)
	n, err := h.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, h.Close())
}

func readAll(t *testing.T, h *Handle) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := h.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	return out
}

// Scenario 1: a single-sector, single-chunk image of one repeated byte
// round-trips exactly, and the repeated-byte chunk compresses to almost
// nothing on disk.
func TestSingleChunkImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := bytes.Repeat([]byte{0xAA}, 512)

	opts := CreateOptions{BytesPerSector: 512, SectorsPerChunk: 64, CompressionLevel: 6, DetectEmptyBlocks: true}
	acquire(t, path, nil, opts, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(512), h.Size())
	got := readAll(t, h)
	require.Equal(t, data, got)

	// Reading at the end of the medium returns nothing.
	n, err := h.ReadAt(make([]byte, 1), 512)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 0, n)

	// The stored chunk is a deflated run of one byte: a few dozen bytes at
	// most, nowhere near the 512 plaintext ones.
	f, err := segment.OpenFile(path, false, nil)
	require.NoError(t, err)
	defer f.Close()
	sectors := f.FindAll("sectors")
	require.Len(t, sectors, 1)
	require.Less(t, sectors[0].PayloadSize, int64(32))
}

// A write that stops mid-sector is padded with zeros out to the sector
// boundary: the re-opened image is sector-granular and returns the plaintext
// followed by zeros.
func TestShortWriteZeroPadsToSectorBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := []byte("a forensic acquisition smaller than one sector")

	acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 64}, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(512), h.Size())
	got := readAll(t, h)
	require.Equal(t, data, got[:len(data)])
	require.Equal(t, make([]byte, 512-len(data)), got[len(data):])
}

// Scenario 2: an acquisition whose segment cap forces several rollovers
// produces a contiguous multi-segment set that still reads back exactly.
func TestMultiSegmentRollover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")

	chunkSize := 512
	data := make([]byte, chunkSize*40) // 40 chunks
	rand.New(rand.NewSource(1)).Read(data)

	opts := CreateOptions{
		BytesPerSector:   512,
		SectorsPerChunk:  1,
		CompressionLevel: 1,
		SegmentSizeCap:   2048, // small enough to force rollover every few chunks
	}
	acquire(t, path, nil, opts, data)

	paths, err := segment.Glob(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(paths), 4, "segment cap should have forced at least 4 segment files")

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(len(data)), h.Size())
	got := readAll(t, h)
	require.Equal(t, data, got)
}

// Scenario 3: seeking to an arbitrary offset then reading returns the bytes
// that belong there, not whatever the sequential cursor would have given.
func TestSeekThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 512*10)
	for i := range data {
		data[i] = byte(i)
	}
	opts := CreateOptions{BytesPerSector: 512, SectorsPerChunk: 2}
	acquire(t, path, nil, opts, data)

	// The mmap-backed byte source serves the same bytes as the plain one.
	h, err := Open(path, OpenOptions{UseMmap: true})
	require.NoError(t, err)
	defer h.Close()

	const at = 1500
	pos, err := h.Seek(at, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(at), pos)

	buf := make([]byte, 100)
	n, err := h.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.Equal(t, data[at:at+100], buf)
}

// Scenario 4: header values set before acquisition begins round-trip
// through the header section.
func TestHeaderValueRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	header := metatext.NewValues()
	header.Set("c", "CASE-0042")
	header.Set("n", "exhibit-one")
	header.Set("ov", "Linux")

	opts := CreateOptions{BytesPerSector: 512, SectorsPerChunk: 64}
	acquire(t, path, header, opts, bytes.Repeat([]byte{0x41}, 256))

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	v, ok := h.HeaderValue("c")
	require.True(t, ok)
	require.Equal(t, "CASE-0042", v)

	v, ok = h.HeaderValue("n")
	require.True(t, ok)
	require.Equal(t, "exhibit-one", v)

	require.Contains(t, h.HeaderKeys(), "ov")
}

// The closing segment always records the written stream's MD5; a
// caller-supplied SHA1 rides along in a digest section, and both read back
// as hash values after re-opening.
func TestHashValueRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 512*4)
	rand.New(rand.NewSource(7)).Read(data)

	h, err := Create(path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1})
	require.NoError(t, err)
	sha := sha1.Sum(data)
	require.NoError(t, h.SetHashValue("SHA1", hex.EncodeToString(sha[:])))

	err = h.SetHashValue("MD5", "0123")
	require.Error(t, err)
	require.True(t, IsKind(err, KindArgument))

	_, err = h.Write(data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	r, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer r.Close()

	md := md5.Sum(data)
	v, ok := r.HashValue("MD5")
	require.True(t, ok)
	require.Equal(t, hex.EncodeToString(md[:]), v)

	v, ok = r.HashValue("SHA1")
	require.True(t, ok)
	require.Equal(t, hex.EncodeToString(sha[:]), v)

	require.Equal(t, []string{"MD5", "SHA1"}, r.HashKeys())
}

// Seeking outside [0, media size] is an argument error and leaves the
// cursor where it was.
func TestSeekRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 512*2)
	acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1}, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Seek(-1, io.SeekStart)
	require.True(t, IsKind(err, KindArgument))

	_, err = h.Seek(h.Size()+1, io.SeekStart)
	require.True(t, IsKind(err, KindArgument))

	pos, err := h.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	pos, err = h.Seek(h.Size(), io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, h.Size(), pos)

	pos, err = h.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, h.Size(), pos)
}

// SetHeaderValue must be rejected once acquisition has started writing.
func TestSetHeaderValueFrozenAfterFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	h, err := Create(path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 64})
	require.NoError(t, err)

	require.NoError(t, h.SetHeaderValue("c", "before"))
	_, err = h.Write([]byte("first byte freezes metadata"))
	require.NoError(t, err)

	err = h.SetHeaderValue("c", "after")
	require.Error(t, err)
	require.True(t, IsKind(err, KindState))

	require.NoError(t, h.Close())
}

// Scenario 5: a corrupted table section in a non-first segment is tolerated
// via its table2 mirror, and the retry is counted.
func TestCorruptionToleranceViaTable2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")

	chunkSize := 512
	data := make([]byte, chunkSize*40)
	rand.New(rand.NewSource(2)).Read(data)

	opts := CreateOptions{
		BytesPerSector:   512,
		SectorsPerChunk:  1,
		CompressionLevel: 1,
		SegmentSizeCap:   2048,
	}
	acquire(t, path, nil, opts, data)

	paths, err := segment.Glob(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(paths), 2)

	// Corrupt the second segment's "table" section header (one of its first
	// 20 checksummed bytes), which breaks that section's own checksum without
	// touching table2.
	f, err := segment.OpenFile(paths[1], false, nil)
	require.NoError(t, err)
	refs := f.FindAll("table")
	require.Len(t, refs, 1)
	ref := refs[0]
	require.NoError(t, f.Close())

	flipByteAt(t, paths[1], ref.PayloadOffset)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(len(data)), h.Size())
	got := readAll(t, h)
	require.Equal(t, data, got)
	require.Greater(t, h.AcquisitionErrors(), 0)
}

// flipByteAt flips every bit of the byte at off in the file at path, using a
// plain os-level write (outside the ByteSource abstraction, standing in for
// bit rot or a damaged write the acquisition tool itself would never cause).
func flipByteAt(t *testing.T, path string, off int64) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, off)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, err = f.WriteAt(buf, off)
	require.NoError(t, err)
}

// Scenario 6: a boundary read spanning the image's final, short chunk
// returns exactly the bytes that exist, not a full chunk's worth.
func TestBoundaryRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 1000)
	rand.New(rand.NewSource(3)).Read(data)

	// 8-byte sectors, 64 per chunk: 512-byte chunks over a 1000-byte medium,
	// so the second chunk carries only 488 valid bytes.
	opts := CreateOptions{BytesPerSector: 8, SectorsPerChunk: 64}
	acquire(t, path, nil, opts, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, int64(1000), h.Size())

	buf := make([]byte, 100)
	n, err := h.ReadAt(buf, 950)
	require.NoError(t, err)
	require.Equal(t, 50, n)
	require.Equal(t, data[950:1000], buf[:50])

	n, err = h.ReadAt(buf, 1000)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 0, n)
}

// Seeking to the same offset repeatedly must always land at that offset,
// regardless of interleaved reads moving the cursor in between.
func TestSeekIdempotence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 512*8)
	rand.New(rand.NewSource(4)).Read(data)
	acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1}, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	for i := 0; i < 3; i++ {
		pos, err := h.Seek(777, io.SeekStart)
		require.NoError(t, err)
		require.Equal(t, int64(777), pos)

		buf := make([]byte, 10)
		_, err = h.Read(buf)
		require.NoError(t, err)
		require.Equal(t, data[777:787], buf)
	}
}

// A read spanning a chunk boundary must return the same bytes whether it is
// served as one read or as several smaller reads straddling the boundary.
func TestChunkBoundaryInvariance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	data := make([]byte, 512*4)
	rand.New(rand.NewSource(5)).Read(data)
	acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1}, data)

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	whole := make([]byte, 40)
	_, err = h.ReadAt(whole, 500) // straddles the 512-byte chunk boundary
	require.NoError(t, err)

	part1 := make([]byte, 12)
	_, err = h.ReadAt(part1, 500)
	require.NoError(t, err)
	part2 := make([]byte, 28)
	_, err = h.ReadAt(part2, 512)
	require.NoError(t, err)

	require.Equal(t, whole, append(append([]byte{}, part1...), part2...))
}

// Compression round-trips: an incompressible (random) payload and a highly
// compressible (repeated-byte) payload must both read back byte-identical.
func TestCompressionRoundTripBothPaths(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"random", func() []byte { b := make([]byte, 512*3); rand.New(rand.NewSource(6)).Read(b); return b }()},
		{"repeated", bytes.Repeat([]byte{0}, 512*3)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "evidence.E01")
			acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1, DetectEmptyBlocks: true}, tc.data)

			h, err := Open(path, OpenOptions{})
			require.NoError(t, err)
			defer h.Close()

			got := readAll(t, h)
			require.Equal(t, tc.data, got)
		})
	}
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.E01"), OpenOptions{})
	require.Error(t, err)
	require.True(t, IsKind(err, KindIO))
}

func TestHandleStringSummarizesModeAndSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	acquire(t, path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 1}, bytes.Repeat([]byte{0x42}, 2048))

	h, err := Open(path, OpenOptions{})
	require.NoError(t, err)
	defer h.Close()

	s := h.String()
	require.Contains(t, s, "read")
	require.Contains(t, s, "kB")
}

func TestWriteAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.E01")
	h, err := Create(path, nil, CreateOptions{BytesPerSector: 512, SectorsPerChunk: 64})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.Write([]byte("too late"))
	require.Error(t, err)
	require.True(t, IsKind(err, KindState))
}
