package wire

import (
	"fmt"

	"github.com/go-forensics/ewfgo/internal/ioutil"
)

// SectionHeaderSize is the fixed size of a section descriptor.
const SectionHeaderSize = 76

// SectionHeader is the 76-byte descriptor that starts every section: a type
// tag, the absolute offset of the next section, this section's total size
// (descriptor included), 40 reserved bytes and a trailing Adler-32 over the
// preceding 72 bytes.
type SectionHeader struct {
	Type       string
	NextOffset uint64
	Size       uint64
	Checksum   uint32
}

// KnownSectionTypes lists every section tag the reader recognizes. Anything
// else is skipped via NextOffset.
var KnownSectionTypes = map[string]bool{
	"header": true, "header2": true, "xheader": true,
	"volume": true, "disk": true, "data": true,
	"table": true, "table2": true,
	"sectors": true,
	"hash":    true, "digest": true, "xhash": true,
	"error2": true, "session": true, "ltree": true, "ltype": true, "map": true,
	"restart data": true,
	"next":         true, "done": true,
}

// DecodeSectionHeader parses a 76-byte descriptor and validates its checksum.
func DecodeSectionHeader(b []byte) (SectionHeader, error) {
	if len(b) != SectionHeaderSize {
		return SectionHeader{}, fmt.Errorf("wire: section header must be %d bytes, got %d", SectionHeaderSize, len(b))
	}
	sum := ioutil.LE32(b[72:76])
	if !VerifyChecksum(b[:72], sum) {
		return SectionHeader{}, fmt.Errorf("wire: section header checksum mismatch")
	}
	typ := trimTag(b[0:16])
	return SectionHeader{
		Type:       typ,
		NextOffset: ioutil.LE64(b[16:24]),
		Size:       ioutil.LE64(b[24:32]),
		Checksum:   sum,
	}, nil
}

// EncodeSectionHeader serializes h into a fresh 76-byte descriptor, computing
// the trailing checksum.
func EncodeSectionHeader(h SectionHeader) []byte {
	b := make([]byte, SectionHeaderSize)
	copy(b[0:16], h.Type)
	ioutil.PutLE64(b[16:24], h.NextOffset)
	ioutil.PutLE64(b[24:32], h.Size)
	// b[32:72] stays zero (reserved/padding).
	ioutil.PutLE32(b[72:76], Checksum(b[:72]))
	return b
}

func trimTag(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
