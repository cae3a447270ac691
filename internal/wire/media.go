package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/go-forensics/ewfgo/internal/ioutil"
)

// MediaRecordSize is the fixed size of the volume/disk record.
const MediaRecordSize = 1052

// Media type and flag values carried by the volume/disk record.
const (
	MediaTypeRemovable = 0x00
	MediaTypeFixed     = 0x01
	MediaTypeOptical   = 0x03
	MediaTypeLogical   = 0x0e
	MediaTypeRAM       = 0x10

	MediaFlagImage    = 0x01
	MediaFlagPhysical = 0x02
	MediaFlagFastbloc = 0x04
	MediaFlagTableau  = 0x08

	CompressionNone = 0x00
	CompressionGood = 0x01
	CompressionBest = 0x02
)

// MediaRecord is the decoded form of the 1052-byte volume/disk record.
type MediaRecord struct {
	MediaType             uint8
	NumberOfChunks        uint32
	SectorsPerChunk       uint32
	BytesPerSector        uint32
	NumberOfSectors       uint64
	CHSCylinders          uint32
	CHSHeads              uint32
	CHSSectors            uint32
	MediaFlags            uint8
	PALMVolumeStartSector uint32
	SMARTLogsStartSector  uint32
	CompressionLevel      uint8
	ErrorGranularity      uint32
	SegmentFileSetID      uuid.UUID
}

// DecodeMediaRecord parses a 1052-byte volume/disk record and validates its
// trailing Adler-32 (over bytes [0:1048)).
func DecodeMediaRecord(b []byte) (MediaRecord, error) {
	if len(b) != MediaRecordSize {
		return MediaRecord{}, fmt.Errorf("wire: media record must be %d bytes, got %d", MediaRecordSize, len(b))
	}
	sum := ioutil.LE32(b[1048:1052])
	if !VerifyChecksum(b[:1048], sum) {
		return MediaRecord{}, fmt.Errorf("wire: media record checksum mismatch")
	}
	id, _ := uuid.FromBytes(b[64:80])
	return MediaRecord{
		MediaType:             b[0],
		NumberOfChunks:        ioutil.LE32(b[4:8]),
		SectorsPerChunk:       ioutil.LE32(b[8:12]),
		BytesPerSector:        ioutil.LE32(b[12:16]),
		NumberOfSectors:       ioutil.LE64(b[16:24]),
		CHSCylinders:          ioutil.LE32(b[24:28]),
		CHSHeads:              ioutil.LE32(b[28:32]),
		CHSSectors:            ioutil.LE32(b[32:36]),
		MediaFlags:            b[36],
		PALMVolumeStartSector: ioutil.LE32(b[40:44]),
		SMARTLogsStartSector:  ioutil.LE32(b[48:52]),
		CompressionLevel:      b[52],
		ErrorGranularity:      ioutil.LE32(b[56:60]),
		SegmentFileSetID:      id,
	}, nil
}

// EncodeMediaRecord serializes r into a fresh 1052-byte record.
func EncodeMediaRecord(r MediaRecord) []byte {
	b := make([]byte, MediaRecordSize)
	b[0] = r.MediaType
	ioutil.PutLE32(b[4:8], r.NumberOfChunks)
	ioutil.PutLE32(b[8:12], r.SectorsPerChunk)
	ioutil.PutLE32(b[12:16], r.BytesPerSector)
	ioutil.PutLE64(b[16:24], r.NumberOfSectors)
	ioutil.PutLE32(b[24:28], r.CHSCylinders)
	ioutil.PutLE32(b[28:32], r.CHSHeads)
	ioutil.PutLE32(b[32:36], r.CHSSectors)
	b[36] = r.MediaFlags
	ioutil.PutLE32(b[40:44], r.PALMVolumeStartSector)
	ioutil.PutLE32(b[48:52], r.SMARTLogsStartSector)
	b[52] = r.CompressionLevel
	ioutil.PutLE32(b[56:60], r.ErrorGranularity)
	copy(b[64:80], r.SegmentFileSetID[:])
	// b[80:1043] unknown6 stays zero; signature at [1043:1048] left blank:
	// readers key off the section's own type tag, not this inner signature.
	ioutil.PutLE32(b[1048:1052], Checksum(b[:1048]))
	return b
}
