package metatext

import (
	"github.com/pkg/errors"

	"github.com/go-forensics/ewfgo/internal/ioutil"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// SectorRange is one contiguous run of sectors recorded by an error2 or
// session section: error2 ranges mark sectors the acquisition could not
// read cleanly; session ranges mark the sector extents of one optical
// session.
type SectorRange struct {
	Start uint64
	Count uint64
}

const rangeTableHeaderSize = 24
const rangeEntrySize = 8

// DecodeRangeTable parses an error2/session section payload: a 24-byte
// header (4-byte entry count, 16 reserved, checksum over the first 20
// bytes) followed by
// count 8-byte {firstSector, numSectors} entries and a trailing checksum
// over the entry array.
func DecodeRangeTable(b []byte) ([]SectorRange, error) {
	if len(b) < rangeTableHeaderSize {
		return nil, errors.Errorf("metatext: range table shorter than its header (%d bytes)", len(b))
	}
	count := ioutil.LE32(b[0:4])
	sum := ioutil.LE32(b[20:24])
	if !wire.VerifyChecksum(b[:20], sum) {
		return nil, errors.New("metatext: range table header checksum mismatch")
	}

	entriesStart := rangeTableHeaderSize
	need := int(count)*rangeEntrySize + 4
	if len(b)-entriesStart < need {
		return nil, errors.Errorf("metatext: range table entry region too short for %d entries", count)
	}
	region := b[entriesStart : entriesStart+need]
	esum := ioutil.LE32(region[len(region)-4:])
	if !wire.VerifyChecksum(region[:len(region)-4], esum) {
		return nil, errors.New("metatext: range table entries checksum mismatch")
	}

	out := make([]SectorRange, count)
	for i := range out {
		off := i * rangeEntrySize
		out[i] = SectorRange{
			Start: uint64(ioutil.LE32(region[off : off+4])),
			Count: uint64(ioutil.LE32(region[off+4 : off+8])),
		}
	}
	return out, nil
}

// EncodeRangeTable serializes ranges back into an error2/session payload.
func EncodeRangeTable(ranges []SectorRange) []byte {
	header := make([]byte, rangeTableHeaderSize)
	ioutil.PutLE32(header[0:4], uint32(len(ranges)))
	ioutil.PutLE32(header[20:24], wire.Checksum(header[:20]))

	entries := make([]byte, len(ranges)*rangeEntrySize+4)
	for i, r := range ranges {
		off := i * rangeEntrySize
		ioutil.PutLE32(entries[off:off+4], uint32(r.Start))
		ioutil.PutLE32(entries[off+4:off+8], uint32(r.Count))
	}
	ioutil.PutLE32(entries[len(ranges)*rangeEntrySize:], wire.Checksum(entries[:len(ranges)*rangeEntrySize]))

	out := make([]byte, 0, len(header)+len(entries))
	out = append(out, header...)
	out = append(out, entries...)
	return out
}
