package chunk

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/go-forensics/ewfgo/internal/ioutil"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// Encode compresses plain at the given zlib level and returns the bytes to
// store on disk together with whether the result is compressed. If the
// deflated form is not smaller than the original, plain is stored raw with
// a trailing Adler-32 instead, matching the format's own fallback rule:
// a chunk is only worth compressing if it actually saves space.
//
// detectEmpty gates the empty-block scan: a single-repeated-byte block
// deflates to a handful of bytes regardless of level, so once the scan
// confirms one, the slow configured level is skipped in favor of
// zlib.BestSpeed. Large all-zero or all-0xFF runs (common in unallocated
// sectors) never pay for a level-9 deflate pass. empty reports
// whether plain was a single repeated byte; it is informational for
// callers (no separate on-disk representation exists for it).
func Encode(plain []byte, level int, detectEmpty bool) (out []byte, compressed bool, empty bool, err error) {
	if detectEmpty {
		empty = ioutil.IsEmptyBlock(plain)
	}
	useLevel := level
	if empty {
		useLevel = zlib.BestSpeed
	}

	var buf bytes.Buffer
	zw, zerr := zlib.NewWriterLevel(&buf, useLevel)
	if zerr != nil {
		return nil, false, empty, errors.Wrap(zerr, "chunk: zlib writer")
	}
	if _, zerr = zw.Write(plain); zerr != nil {
		return nil, false, empty, errors.Wrap(zerr, "chunk: zlib write")
	}
	if zerr = zw.Close(); zerr != nil {
		return nil, false, empty, errors.Wrap(zerr, "chunk: zlib close")
	}

	if buf.Len() < len(plain) {
		return buf.Bytes(), true, empty, nil
	}

	raw := make([]byte, len(plain)+4)
	copy(raw, plain)
	ioutil.PutLE32(raw[len(plain):], wire.Checksum(plain))
	return raw, false, empty, nil
}

// Decode reverses Encode. For a compressed chunk the zlib stream's own
// Adler-32 trailer is checked by the reader; for a raw chunk the trailing
// 4-byte Adler-32 is checked explicitly.
func Decode(stored []byte, compressed bool) ([]byte, error) {
	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, errors.Wrap(err, "chunk: zlib open")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "chunk: zlib inflate")
		}
		return out, nil
	}

	if len(stored) < 4 {
		return nil, errors.New("chunk: raw chunk shorter than its checksum")
	}
	data := stored[:len(stored)-4]
	want := ioutil.LE32(stored[len(stored)-4:])
	if !wire.VerifyChecksum(data, want) {
		return nil, errors.New("chunk: raw chunk checksum mismatch")
	}
	return data, nil
}
