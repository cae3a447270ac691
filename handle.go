// Package ewf reads and writes Expert Witness Compression Format (EWF)
// forensic disk images: the E01/Ex01/Lx01/s01 segment-file container, its
// chunked and optionally compressed sector store, and the acquisition
// metadata (header and hash value tables) carried alongside the data.
//
// The package does not interpret the filesystem contained within an imaged
// medium, does not provide acquisition/verification/export/mount command
// line tools, and does not implement its own MD5/SHA-1/deflate/CRC
// primitives; those are left to the standard library and the compression
// package this module already depends on.
package ewf

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/go-forensics/ewfgo/internal/chunk"
	"github.com/go-forensics/ewfgo/internal/metatext"
	"github.com/go-forensics/ewfgo/internal/segment"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// Mode records whether a Handle was opened for reading an existing image or
// for writing a new one. There is no read-write mode: an EWF image is never
// mutated in place, only acquired (write) or examined (read).
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Handle is a single open EWF image, spanning one or more segment files.
// The methods that move the offset, use the chunk cache or change write-mode
// state (Read, ReadAt, Write, Seek, Offset, Close, SetHeaderValue,
// SetHashValue, AcquisitionErrors) take mu; the geometry and metadata
// accessors (Size, HeaderValue, HashValue, String and the like) read their
// fields without it.
type Handle struct {
	mu sync.Mutex

	mode Mode
	log  *zap.SugaredLogger
	set  *segment.Set

	media  wire.MediaRecord
	header *metatext.Values
	hash   *metatext.Values

	errorRanges   []metatext.SectorRange
	sessionRanges []metatext.SectorRange

	table *chunk.Table
	cache *chunk.Cache

	chunkSize int64
	offset    int64
	closed    bool

	// acquisitionErrors counts every chunk whose primary table descriptor
	// failed to decode and had to be retried against its table2 mirror,
	// regardless of whether the retry itself succeeded.
	acquisitionErrors int

	// write-mode only state, populated by Create.
	w *writerState
}

// BytesPerSector returns the sector size recorded in the image's media
// record.
func (h *Handle) BytesPerSector() uint32 { return h.media.BytesPerSector }

// SectorsPerChunk returns the number of sectors packed into one chunk.
func (h *Handle) SectorsPerChunk() uint32 { return h.media.SectorsPerChunk }

// NumberOfSectors returns the total sector count the media record claims.
func (h *Handle) NumberOfSectors() uint64 { return h.media.NumberOfSectors }

// MediaType returns the acquired media's type byte.
func (h *Handle) MediaType() uint8 { return h.media.MediaType }

// Size returns the image's logical size in bytes (sectors × bytes-per-sector).
func (h *Handle) Size() int64 {
	return int64(h.media.NumberOfSectors) * int64(h.media.BytesPerSector)
}

// ChunkSize returns the plaintext size of one chunk in bytes.
func (h *Handle) ChunkSize() int64 { return h.chunkSize }

// Offset returns the current seek position.
func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// HeaderValue returns one named header value (e.g. "c" case number, "n"
// evidence number, "ov" operating system version).
func (h *Handle) HeaderValue(key string) (string, bool) {
	if h.header == nil {
		return "", false
	}
	return h.header.Get(key)
}

// HeaderKeys returns every header value key present, in their original order.
func (h *Handle) HeaderKeys() []string {
	if h.header == nil {
		return nil
	}
	return h.header.Keys()
}

// HashValue returns one named hash (e.g. "MD5", "SHA1").
func (h *Handle) HashValue(key string) (string, bool) {
	if h.hash == nil {
		return "", false
	}
	return h.hash.Get(key)
}

// HashKeys returns every hash value key present, in their original order.
func (h *Handle) HashKeys() []string {
	if h.hash == nil {
		return nil
	}
	return h.hash.Keys()
}

// ErrorRanges returns the sector ranges the acquisition recorded as
// unreadable (the error2 section), if any.
func (h *Handle) ErrorRanges() []metatext.SectorRange { return h.errorRanges }

// SessionRanges returns the optical-media session sector ranges (the
// session section), if any.
func (h *Handle) SessionRanges() []metatext.SectorRange { return h.sessionRanges }

// AcquisitionErrors returns the number of chunks that needed a table2
// retry since the handle was opened.
func (h *Handle) AcquisitionErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquisitionErrors
}

// String renders a human-readable one-line summary of the image, suitable
// for a log line or CLI status output: mode, logical size and chunk size,
// the sizes in humanize's rounded form (e.g. "2.0 kB").
func (h *Handle) String() string {
	mode := "read"
	if h.mode == ModeWrite {
		mode = "write"
	}
	return fmt.Sprintf("ewf.Handle(%s, size=%s, chunk=%s)",
		mode, humanize.Bytes(uint64(h.Size())), humanize.Bytes(uint64(h.chunkSize)))
}

// Seek repositions the next Read/Write, with the usual io.Seeker semantics.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, newError(KindState, "Handle.Seek", errAlreadyClosed)
	}

	// A read-mode handle can seek anywhere within the medium, end inclusive;
	// a write-mode handle only up to the append point, since EWF chunks are
	// written strictly sequentially.
	limit := h.Size()
	if h.mode == ModeWrite {
		// Append point: bytes already emitted as full chunks plus the
		// buffered tail not yet encoded.
		limit = int64(h.w.totalSectors)*int64(h.media.BytesPerSector) + int64(len(h.w.pendingPlain))
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = h.offset
	case io.SeekEnd:
		base = limit
	default:
		return 0, newError(KindArgument, "Handle.Seek", errBadWhence)
	}
	next := base + offset
	if next < 0 {
		return 0, newError(KindArgument, "Handle.Seek", errNegativeOffset)
	}
	if next > limit {
		return 0, newError(KindArgument, "Handle.Seek", errOffsetPastEnd)
	}
	h.offset = next
	return h.offset, nil
}

// Close releases every segment file backing the handle, finalizing the
// current acquisition first if the handle was opened with Create.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.mode == ModeWrite {
		if err := h.w.finish(h); err != nil {
			return wrapError(KindIO, "Handle.Close", err, "finalize acquisition")
		}
	}
	if h.set != nil {
		if err := h.set.Close(); err != nil {
			return wrapError(KindIO, "Handle.Close", err, "close segment files")
		}
	}
	return nil
}
