package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMediaRecordRoundTrip(t *testing.T) {
	rec := MediaRecord{
		MediaType:        MediaTypeFixed,
		NumberOfChunks:   10,
		SectorsPerChunk:  64,
		BytesPerSector:   512,
		NumberOfSectors:  640,
		MediaFlags:       MediaFlagImage | MediaFlagPhysical,
		CompressionLevel: CompressionGood,
		SegmentFileSetID: uuid.New(),
	}
	b := EncodeMediaRecord(rec)
	require.Len(t, b, MediaRecordSize)

	got, err := DecodeMediaRecord(b)
	require.NoError(t, err)
	require.Equal(t, rec.MediaType, got.MediaType)
	require.Equal(t, rec.NumberOfChunks, got.NumberOfChunks)
	require.Equal(t, rec.SectorsPerChunk, got.SectorsPerChunk)
	require.Equal(t, rec.BytesPerSector, got.BytesPerSector)
	require.Equal(t, rec.NumberOfSectors, got.NumberOfSectors)
	require.Equal(t, rec.MediaFlags, got.MediaFlags)
	require.Equal(t, rec.CompressionLevel, got.CompressionLevel)
	require.Equal(t, rec.SegmentFileSetID, got.SegmentFileSetID)
}

func TestMediaRecordRejectsBadChecksum(t *testing.T) {
	b := EncodeMediaRecord(MediaRecord{})
	b[0] ^= 0xff // corrupt a covered byte without touching the checksum field
	_, err := DecodeMediaRecord(b)
	require.Error(t, err)
}

func TestMediaRecordRejectsWrongLength(t *testing.T) {
	_, err := DecodeMediaRecord(make([]byte, 100))
	require.Error(t, err)
}
