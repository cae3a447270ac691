package wire

import (
	"fmt"

	"github.com/go-forensics/ewfgo/internal/ioutil"
)

// TableHeaderSize is the fixed prefix of a table/table2 section, before the
// entry array: 4-byte count, 4 reserved, 8-byte base offset, 4 reserved,
// 4-byte Adler-32 over the preceding 20 bytes.
const TableHeaderSize = 24

// CompressedEntryFlag is the MSB of a table entry: set when the chunk it
// describes is stored compressed.
const CompressedEntryFlag = uint32(1) << 31

// TableHeader is the decoded prefix of a table/table2 section.
type TableHeader struct {
	EntryCount uint32
	BaseOffset uint64
}

// DecodeTableHeader parses the 24-byte table/table2 prefix.
func DecodeTableHeader(b []byte) (TableHeader, error) {
	if len(b) != TableHeaderSize {
		return TableHeader{}, fmt.Errorf("wire: table header must be %d bytes, got %d", TableHeaderSize, len(b))
	}
	sum := ioutil.LE32(b[20:24])
	if !VerifyChecksum(b[:20], sum) {
		return TableHeader{}, fmt.Errorf("wire: table header checksum mismatch")
	}
	return TableHeader{
		EntryCount: ioutil.LE32(b[0:4]),
		BaseOffset: ioutil.LE64(b[8:16]),
	}, nil
}

// EncodeTableHeader serializes h into a fresh 24-byte prefix.
func EncodeTableHeader(h TableHeader) []byte {
	b := make([]byte, TableHeaderSize)
	ioutil.PutLE32(b[0:4], h.EntryCount)
	ioutil.PutLE64(b[8:16], h.BaseOffset)
	ioutil.PutLE32(b[20:24], Checksum(b[:20]))
	return b
}

// DecodeTableEntries parses count raw 4-byte little-endian entries.
func DecodeTableEntries(b []byte, count uint32) ([]uint32, error) {
	if uint32(len(b)) < count*4+4 {
		return nil, fmt.Errorf("wire: table entry region too short for %d entries", count)
	}
	entries := make([]uint32, count)
	for i := range entries {
		entries[i] = ioutil.LE32(b[i*4 : i*4+4])
	}
	sum := ioutil.LE32(b[count*4 : count*4+4])
	if !VerifyChecksum(b[:count*4], sum) {
		return nil, fmt.Errorf("wire: table entries checksum mismatch")
	}
	return entries, nil
}

// EncodeTableEntries serializes entries followed by their trailing checksum.
func EncodeTableEntries(entries []uint32) []byte {
	b := make([]byte, len(entries)*4+4)
	for i, e := range entries {
		ioutil.PutLE32(b[i*4:i*4+4], e)
	}
	ioutil.PutLE32(b[len(entries)*4:], Checksum(b[:len(entries)*4]))
	return b
}
