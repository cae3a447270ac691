package metatext

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineReader decodes the UTF-16LE text carried by header2 payloads (after
// their BOM, and after zlib inflation) into UTF-8 lines, and records the
// MD5 of all the raw bytes it was given. Checksum exposes that digest and
// VerifyChecksum compares it with a caller-supplied one, reporting the
// result as a bool; the handle's open path does not call either.
type LineReader struct {
	sc     *bufio.Scanner
	digest []byte
}

// NewLineReader wraps raw UTF-16LE bytes (BOM optional; both byte orders
// are tolerated via unicode.UseBOM) for line-at-a-time reading.
func NewLineReader(raw []byte) (*LineReader, error) {
	sum := md5.Sum(raw)

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	utf8, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return nil, errors.Wrap(err, "metatext: UTF-16LE decode")
	}

	sc := bufio.NewScanner(bytes.NewReader(utf8))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineReader{sc: sc, digest: sum[:]}, nil
}

// ReadLine returns the next decoded line, or io.EOF once exhausted.
func (r *LineReader) ReadLine() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", errors.Wrap(err, "metatext: line scan")
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

// Checksum returns the MD5 of the raw (still UTF-16LE) bytes that were
// handed to NewLineReader.
func (r *LineReader) Checksum() []byte { return r.digest }

// VerifyChecksum reports whether Checksum matches want, enforcing the
// integrity check for payloads that carry one alongside their text.
func (r *LineReader) VerifyChecksum(want []byte) bool {
	return bytes.Equal(r.digest, want)
}

// ReadAllLines drains raw into a slice of decoded lines.
func ReadAllLines(raw []byte) ([]string, error) {
	lr, err := NewLineReader(raw)
	if err != nil {
		return nil, err
	}
	var lines []string
	for {
		line, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
