package ewf

import (
	"io"

	"github.com/go-forensics/ewfgo/internal/chunk"
	"github.com/go-forensics/ewfgo/internal/segment"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// Open opens an existing EWF image for reading, discovering every segment
// file belonging to the same set as path.
func Open(path string, opts OpenOptions) (*Handle, error) {
	opts = opts.withDefaults()

	set, err := segment.OpenSet(path, opts.UseMmap, opts.Logger)
	if err != nil {
		return nil, wrapError(KindIO, "ewf.Open", err, "open segment set")
	}

	if variant := set.Files[0].Header.Variant; variant == wire.VariantEWF2 || variant == wire.VariantLogicalEWF2 {
		set.Close()
		return nil, newError(KindUnsupported, "ewf.Open", errEWF2Unsupported)
	}

	h := &Handle{
		mode:  ModeRead,
		log:   opts.Logger,
		set:   set,
		cache: chunk.NewCache(opts.CacheCapacity),
	}

	if err := h.parseMetadata(); err != nil {
		set.Close()
		return nil, err
	}
	h.chunkSize = int64(h.media.BytesPerSector) * int64(h.media.SectorsPerChunk)
	if h.chunkSize <= 0 {
		set.Close()
		return nil, newError(KindFormatInvalid, "ewf.Open", errBadChunkGeometry)
	}
	if int64(h.table.Len())*h.chunkSize < h.Size() {
		set.Close()
		return nil, newError(KindFormatInvalid, "ewf.Open", errTableTooShort)
	}
	return h, nil
}

// Read implements io.Reader, advancing the handle's offset.
func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	off := h.offset
	h.mu.Unlock()

	n, err := h.ReadAt(p, off)
	h.mu.Lock()
	h.offset += int64(n)
	h.mu.Unlock()
	return n, err
}

// ReadAt reads len(p) bytes (or up to the image's end) starting at the
// absolute logical offset off, without disturbing the handle's seek
// position. Reads are served chunk-by-chunk through the bounded cache, so a
// caller scanning forward pays the decompress cost once per chunk no matter
// how many small reads land inside it.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, newError(KindState, "Handle.ReadAt", errAlreadyClosed)
	}
	if h.mode != ModeRead {
		return 0, newError(KindState, "Handle.ReadAt", errWriteOnly)
	}
	if off < 0 {
		return 0, newError(KindArgument, "Handle.ReadAt", errNegativeOffset)
	}

	size := h.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := len(p)
	if int64(want) > size-off {
		want = int(size - off)
	}

	total := 0
	for total < want {
		cur := off + int64(total)
		idx := int(cur / h.chunkSize)
		within := int(cur % h.chunkSize)

		plain, err := h.getChunk(idx)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if within >= len(plain) {
			// A chunk that decoded shorter than the geometry claims; the
			// media record promised more bytes than the store carries.
			return total, newError(KindFormatInvalid, "Handle.ReadAt", errChunkShort)
		}

		n := copy(p[total:want], plain[within:])
		total += n
		if n == 0 {
			break
		}
	}
	if total < want {
		return total, io.EOF
	}
	return total, nil
}

// getChunk returns chunk index's decoded plaintext, serving from the cache
// when possible. A primary descriptor that fails to decode is retried once
// against the chunk's table2 mirror before the error is surfaced; every
// such retry increments AcquisitionErrors, whether or not the retry
// itself succeeds.
func (h *Handle) getChunk(index int) ([]byte, error) {
	if plain, ok := h.cache.Get(index); ok {
		return plain, nil
	}

	desc, ok := h.table.Get(index)
	if !ok {
		return nil, newError(KindFormatInvalid, "Handle.getChunk", errChunkIndexOutOfRange)
	}

	plain, err := h.fetchAndDecode(desc)
	if err == nil {
		h.cache.Put(index, plain)
		return plain, nil
	}

	mirror, ok := h.table.GetMirror(index)
	if !ok {
		return nil, err
	}

	h.acquisitionErrors++
	h.logf("chunk %d: primary table entry failed (%v), retrying via table2", index, err)
	plain, mErr := h.fetchAndDecode(mirror)
	if mErr != nil {
		return nil, wrapError(KindIntegrityMismatch, "Handle.getChunk", mErr, "table2 retry also failed")
	}

	h.cache.Put(index, plain)
	return plain, nil
}

// fetchAndDecode reads desc's stored bytes from their owning segment and
// runs the chunk codec over them.
func (h *Handle) fetchAndDecode(desc chunk.Descriptor) ([]byte, error) {
	var file *segment.File
	for _, f := range h.set.Files {
		if f.Header.SegmentNumber == desc.Segment {
			file = f
			break
		}
	}
	if file == nil {
		return nil, newError(KindFormatInvalid, "Handle.getChunk", errChunkSegmentMissing)
	}

	raw := make([]byte, desc.Length)
	if _, err := file.Source.ReadAt(raw, desc.Offset); err != nil {
		return nil, wrapError(KindIO, "Handle.getChunk", err, "read chunk bytes")
	}

	plain, err := chunk.Decode(raw, desc.Compressed())
	if err != nil {
		return nil, wrapError(KindIntegrityMismatch, "Handle.getChunk", err, "decode chunk")
	}
	return plain, nil
}
