package ewf

import (
	"go.uber.org/zap"

	"github.com/go-forensics/ewfgo/internal/chunk"
)

// DefaultBytesPerSector, DefaultSectorsPerChunk and DefaultSegmentSizeCap
// mirror the values libewf's own acquisition tools default to, short of a
// caller overriding them.
const (
	DefaultBytesPerSector   = 512
	DefaultSectorsPerChunk  = 64
	DefaultSegmentSizeCap   = 1_500_000_000 // just under the 1.44 GiB "floppy era" ceiling some targets still enforce
	DefaultCompressionLevel = 6
)

// CreateOptions configures a new acquisition started with Create. There is
// no on-disk configuration file format for this: every knob here is a
// property of the image being written, not of the library's environment.
type CreateOptions struct {
	BytesPerSector    uint32
	SectorsPerChunk   uint32
	SegmentSizeCap    int64
	CompressionLevel  int
	DetectEmptyBlocks bool
	CacheCapacity     int
	MediaType         uint8
	Logger            *zap.SugaredLogger
}

// DefaultCreateOptions returns the option set Create uses when the caller
// supplies a zero-value CreateOptions.
func DefaultCreateOptions() CreateOptions {
	return CreateOptions{
		BytesPerSector:    DefaultBytesPerSector,
		SectorsPerChunk:   DefaultSectorsPerChunk,
		SegmentSizeCap:    DefaultSegmentSizeCap,
		CompressionLevel:  DefaultCompressionLevel,
		DetectEmptyBlocks: true,
		CacheCapacity:     chunk.DefaultCacheCapacity,
	}
}

func (o CreateOptions) withDefaults() CreateOptions {
	d := DefaultCreateOptions()
	if o == (CreateOptions{}) {
		return d
	}
	if o.BytesPerSector == 0 {
		o.BytesPerSector = d.BytesPerSector
	}
	if o.SectorsPerChunk == 0 {
		o.SectorsPerChunk = d.SectorsPerChunk
	}
	if o.SegmentSizeCap == 0 {
		o.SegmentSizeCap = d.SegmentSizeCap
	}
	if o.CompressionLevel == 0 {
		o.CompressionLevel = d.CompressionLevel
	}
	if o.CacheCapacity == 0 {
		o.CacheCapacity = d.CacheCapacity
	}
	return o
}

// OpenOptions configures Open.
type OpenOptions struct {
	UseMmap       bool
	CacheCapacity int
	Logger        *zap.SugaredLogger
}

func (o OpenOptions) withDefaults() OpenOptions {
	if o.CacheCapacity == 0 {
		o.CacheCapacity = chunk.DefaultCacheCapacity
	}
	return o
}
