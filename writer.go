package ewf

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/juju/fslock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/go-forensics/ewfgo/internal/chunk"
	"github.com/go-forensics/ewfgo/internal/metatext"
	"github.com/go-forensics/ewfgo/internal/segment"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// pendingSegment is one segment file of a write-mode acquisition, staged
// via renameio but not yet published under its final name. Every segment
// is kept open for the life of the acquisition: the first segment's volume
// record can only be patched with final sector/chunk counts once the very
// last chunk has been written, so nothing is published until Close.
type pendingSegment struct {
	path    string
	pending *renameio.PendingFile
	source  segment.ByteSource
	offset  int64
}

// writerState holds everything Create/Write/Close need to assemble an
// EWF acquisition's segment files incrementally. When the encoded size of
// the current segment would exceed opts.SegmentSizeCap, the segment is
// closed out with a "next" section and a fresh one opened, following the
// same multi-file naming rule the read path already consumes
// (internal/segment.Extension).
type writerState struct {
	opts     CreateOptions
	variant  wire.Variant
	basePath string // path with its segment extension stripped
	log      *zap.SugaredLogger

	segments []*pendingSegment
	lock     *fslock.Lock
	lockPath string

	segmentNumber   uint16
	mediaSectionOff int64 // offset of the volume record's payload, within segments[0]
	chunkSize       int64

	pendingPlain []byte
	sectorsBuf   *segment.PayloadBuilder
	tableOffsets []int64
	tableComp    []bool

	totalSectors uint64
	md5          hash.Hash
	started      bool
}

// Create starts a new EWF acquisition at path (the literal first segment
// filename, e.g. "evidence.E01"). header supplies the case/evidence
// metadata recorded in the header section; it may be nil for an empty
// header. The returned Handle is write-only: Read/ReadAt return
// KindState errors.
func Create(path string, header *metatext.Values, opts CreateOptions) (*Handle, error) {
	opts = opts.withDefaults()
	if header == nil {
		header = metatext.NewValues()
	}

	// An advisory lock for the duration of the acquisition only: concurrent
	// writers to the same target fail fast here instead of silently racing.
	// The lock file is removed again on release, so the finished segment set
	// is the only thing the acquisition leaves on disk.
	lockPath := path + ".lock"
	lock := fslock.New(lockPath)
	if err := lock.TryLock(); err != nil {
		return nil, wrapError(KindState, "ewf.Create", err, "acquire advisory write lock")
	}
	release := func() {
		lock.Unlock()
		os.Remove(lockPath)
	}

	base, variant, err := splitSegmentPath(path)
	if err != nil {
		release()
		return nil, wrapError(KindArgument, "ewf.Create", err, "parse segment filename")
	}

	w := &writerState{
		opts:          opts,
		variant:       variant,
		basePath:      base,
		log:           opts.Logger,
		lock:          lock,
		lockPath:      lockPath,
		chunkSize:     int64(opts.BytesPerSector) * int64(opts.SectorsPerChunk),
		md5:           md5.New(),
		sectorsBuf:    segment.NewPayloadBuilder(),
		segmentNumber: 1,
	}
	if w.chunkSize <= 0 {
		release()
		return nil, newError(KindArgument, "ewf.Create", errBadChunkGeometry)
	}

	if err := w.openSegment(path, 1); err != nil {
		release()
		return nil, wrapError(KindIO, "ewf.Create", err, "create segment file")
	}

	if err := w.writeOpeningSections(header); err != nil {
		release()
		return nil, wrapError(KindIO, "ewf.Create", err, "write opening sections")
	}

	h := &Handle{
		mode:      ModeWrite,
		log:       opts.Logger,
		media:     wire.MediaRecord{MediaType: opts.MediaType, BytesPerSector: opts.BytesPerSector, SectorsPerChunk: opts.SectorsPerChunk, CompressionLevel: uint8(opts.CompressionLevel)},
		header:    header,
		chunkSize: w.chunkSize,
		w:         w,
	}
	return h, nil
}

// splitSegmentPath separates the filename's variant-carrying extension
// from its stem, the way internal/segment.Glob does for the read path.
func splitSegmentPath(path string) (string, wire.Variant, error) {
	ext := filepath.Ext(path)
	if len(ext) != 4 {
		return "", 0, errors.Errorf("expected a 3-character segment extension (e.g. .E01), got %q", ext)
	}
	var variant wire.Variant
	switch ext[1] {
	case 'E':
		variant = wire.VariantEWF1
	case 'L':
		variant = wire.VariantLogicalEWF1
	case 's':
		variant = wire.VariantSMART
	default:
		return "", 0, errors.Errorf("unrecognized segment extension lead letter %q", ext[1])
	}
	return strings.TrimSuffix(path, ext), variant, nil
}

// segmentPath returns the filename for segment number n of this acquisition.
func (w *writerState) segmentPath(n uint16) (string, error) {
	ext, err := segment.Extension(w.variant, n)
	if err != nil {
		return "", err
	}
	return w.basePath + "." + ext, nil
}

// openSegment creates segment number n at path via renameio (so a crash
// mid-write never leaves a half-initialized segment visible under its
// final name) and writes its 13-byte file header.
func (w *writerState) openSegment(path string, n uint16) error {
	src, pending, err := segment.CreateFileSourceWrite(path)
	if err != nil {
		return err
	}
	ps := &pendingSegment{path: path, pending: pending, source: src}
	w.segments = append(w.segments, ps)
	w.segmentNumber = n

	fh := wire.EncodeFileHeader(wire.FileHeader{Variant: w.variant, SegmentNumber: n})
	if _, err := src.WriteAt(fh, 0); err != nil {
		return err
	}
	ps.offset = wire.FileHeaderSize
	return nil
}

// current returns the segment currently accepting chunk data.
func (w *writerState) current() *pendingSegment { return w.segments[len(w.segments)-1] }

// writeOpeningSections writes the file header (already done by openSegment),
// the header section and a placeholder volume section (patched with final
// counts at Close) into the first segment.
func (w *writerState) writeOpeningSections(header *metatext.Values) error {
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	if _, err := zw.Write([]byte(header.EncodeHeaderText())); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := w.appendSection("header", zbuf.Bytes(), false); err != nil {
		return err
	}

	w.mediaSectionOff = w.current().offset
	if err := w.appendSection("volume", wire.EncodeMediaRecord(wire.MediaRecord{}), false); err != nil {
		return err
	}
	return nil
}

// appendSection writes one section (descriptor + payload) to the current
// segment at its running offset and advances it. isLast marks a "next" or
// "done" terminator, whose NextOffset points at itself.
func (w *writerState) appendSection(typ string, payload []byte, isLast bool) error {
	cur := w.current()
	buf := segment.EncodeSection(typ, payload, cur.offset, isLast)
	if _, err := cur.source.WriteAt(buf, cur.offset); err != nil {
		return err
	}
	cur.offset += int64(len(buf))
	return nil
}

// SetHeaderValue sets one header value identifier.
// Only legal before the first byte is written to the handle; once
// acquisition has begun the header section has already been staged to
// disk and can no longer change.
func (h *Handle) SetHeaderValue(id, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return newError(KindState, "Handle.SetHeaderValue", errAlreadyClosed)
	}
	if h.mode != ModeWrite {
		return newError(KindState, "Handle.SetHeaderValue", errReadOnly)
	}
	if h.w.started {
		return newError(KindState, "Handle.SetHeaderValue", errMetadataFrozen)
	}
	h.header.Set(id, value)
	return nil
}

// SetHashValue records one externally computed digest (e.g. a "SHA1" the
// acquisition tool ran in parallel with the write stream) to be serialized
// when the acquisition is finalized: with a SHA1 present the closing segment
// carries a digest section alongside the hash section. The MD5 of the
// written stream is always computed by the handle itself; a caller-supplied
// "MD5" is rejected rather than silently overridden.
func (h *Handle) SetHashValue(id, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return newError(KindState, "Handle.SetHashValue", errAlreadyClosed)
	}
	if h.mode != ModeWrite {
		return newError(KindState, "Handle.SetHashValue", errReadOnly)
	}
	if id == "MD5" {
		return newError(KindArgument, "Handle.SetHashValue", errMD5IsComputed)
	}
	if h.hash == nil {
		h.hash = metatext.NewValues()
	}
	h.hash.Set(id, value)
	return nil
}

// Write implements io.Writer for a Handle opened with Create: plaintext is
// buffered until a full chunk accumulates, then compressed and appended to
// the current segment's in-progress sectors payload. A write that would
// push the current segment past its size cap instead rolls over to a new
// segment file, closing the current one out with a "next" section.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, newError(KindState, "Handle.Write", errAlreadyClosed)
	}
	if h.mode != ModeWrite {
		return 0, newError(KindState, "Handle.Write", errReadOnly)
	}

	w := h.w
	w.started = true
	w.md5.Write(p)
	w.pendingPlain = append(w.pendingPlain, p...)

	for int64(len(w.pendingPlain)) >= w.chunkSize {
		plain := append([]byte(nil), w.pendingPlain[:w.chunkSize]...)
		w.pendingPlain = append([]byte(nil), w.pendingPlain[w.chunkSize:]...)
		if err := w.emitChunk(plain); err != nil {
			if typed, ok := err.(*Error); ok {
				return 0, typed
			}
			return 0, wrapError(KindIO, "Handle.Write", err, "emit chunk")
		}
	}

	h.offset += int64(len(p))
	return len(p), nil
}

// emitChunk compresses one full (or final, short) chunk's worth of
// plaintext and appends it to the current segment's sectors buffer,
// rolling over to a new segment first if it would not fit under the
// configured cap.
func (w *writerState) emitChunk(plain []byte) error {
	out, compressed, _, err := chunk.Encode(plain, w.opts.CompressionLevel, w.opts.DetectEmptyBlocks)
	if err != nil {
		return err
	}

	projected := w.current().offset + wire.SectionHeaderSize + w.sectorsBuf.Len() + int64(len(out))
	if projected > w.opts.SegmentSizeCap && w.sectorsBuf.Len() > 0 {
		if err := w.rollSegment(); err != nil {
			return err
		}
	}

	off := w.sectorsBuf.Len()
	if _, err := w.sectorsBuf.Write(out); err != nil {
		return err
	}
	w.tableOffsets = append(w.tableOffsets, off)
	w.tableComp = append(w.tableComp, compressed)

	// plain is a full chunk's worth of sectors except possibly the very
	// last one flushed by finish, which may be short; count only the sectors it
	// actually covers, rounded up.
	sectors := uint64(len(plain)) / uint64(w.opts.BytesPerSector)
	if uint64(len(plain))%uint64(w.opts.BytesPerSector) != 0 {
		sectors++
	}
	w.totalSectors += sectors
	return nil
}

// rollSegment closes out the current segment with its sectors/table/
// table2/"next" sections, then opens the following segment number, ready
// to receive more chunk data. The current segment is not yet published
// (renamed into place); that happens for every segment at once, from
// finish, once the first segment's volume record can be patched with its
// final totals.
func (w *writerState) rollSegment() error {
	if err := w.flushTableSections(false); err != nil {
		return err
	}
	if w.log != nil {
		w.log.Infow("segment size cap reached, rolling to next segment",
			"segment", w.segmentNumber, "cap", w.opts.SegmentSizeCap)
	}

	next := w.segmentNumber + 1
	path, err := w.segmentPath(next)
	if err != nil {
		return newError(KindResource, "Handle.Write", errors.Wrap(err, "segment naming range exhausted"))
	}
	if err := w.openSegment(path, next); err != nil {
		return errors.Wrap(err, "writer: open next segment")
	}
	w.sectorsBuf = segment.NewPayloadBuilder()
	w.tableOffsets = nil
	w.tableComp = nil
	return nil
}

// flushTableSections appends the current segment's sectors/table/table2
// sections at the segment's running offset, closing a non-final segment out
// with a "next" terminator. The final segment's hash/digest/done tail is
// written by finish, which owns the computed stream digest.
func (w *writerState) flushTableSections(isLast bool) error {
	baseOffset := w.current().offset + wire.SectionHeaderSize
	if err := w.appendSection("sectors", w.sectorsBuf.Bytes(), false); err != nil {
		return err
	}

	entries := make([]uint32, len(w.tableOffsets))
	for i, off := range w.tableOffsets {
		e := uint32(off)
		if w.tableComp[i] {
			e |= wire.CompressedEntryFlag
		}
		entries[i] = e
	}
	tableHeader := wire.EncodeTableHeader(wire.TableHeader{EntryCount: uint32(len(entries)), BaseOffset: uint64(baseOffset)})
	tablePayload := append(tableHeader, wire.EncodeTableEntries(entries)...)

	if err := w.appendSection("table", tablePayload, false); err != nil {
		return err
	}
	// table2 is a verbatim duplicate of table, built from the same
	// in-memory entries, giving every read a real mirror to retry against.
	if err := w.appendSection("table2", tablePayload, false); err != nil {
		return err
	}

	if isLast {
		return nil
	}
	return w.appendSection("next", nil, true)
}

// writeHashSections appends the closing hash (and, when a SHA1 was supplied
// via SetHashValue, digest) sections followed by the "done" terminator, and
// records the computed MD5 back into the handle's hash table.
func (w *writerState) writeHashSections(h *Handle) error {
	var sum [16]byte
	copy(sum[:], w.md5.Sum(nil))

	if err := w.appendSection("hash", wire.EncodeHashRecord(wire.HashRecord{MD5: sum}), false); err != nil {
		return err
	}

	if h.hash == nil {
		h.hash = metatext.NewValues()
	}
	if s, ok := h.hash.Get("SHA1"); ok {
		raw, err := hex.DecodeString(s)
		if err != nil || len(raw) != 20 {
			return newError(KindArgument, "Handle.Close", errors.Errorf("SHA1 hash value %q is not 20 hex-encoded bytes", s))
		}
		var sha1 [20]byte
		copy(sha1[:], raw)
		if err := w.appendSection("digest", wire.EncodeDigestRecord(wire.DigestRecord{MD5: sum, SHA1: sha1}), false); err != nil {
			return err
		}
	}
	h.hash.Set("MD5", hex.EncodeToString(sum[:]))

	return w.appendSection("done", nil, true)
}

// finish flushes any partial final chunk, closes out the last segment with
// its sectors/table/table2/hash/done sections, patches the first segment's
// media record with final counts, and atomically publishes every segment
// file. Called once from Handle.Close.
func (w *writerState) finish(h *Handle) error {
	defer func() {
		w.lock.Unlock()
		os.Remove(w.lockPath)
	}()

	if len(w.pendingPlain) > 0 {
		// The medium is sector-granular: a tail that stops mid-sector is
		// zero-padded out to the sector boundary, so the stored chunk always
		// decodes to a whole number of sectors and a full-media read returns
		// the plaintext followed by zeros.
		if rem := len(w.pendingPlain) % int(w.opts.BytesPerSector); rem != 0 {
			w.pendingPlain = append(w.pendingPlain, make([]byte, int(w.opts.BytesPerSector)-rem)...)
		}
		if err := w.emitChunk(w.pendingPlain); err != nil {
			return err
		}
		w.pendingPlain = nil
	}

	if err := w.flushTableSections(true); err != nil {
		return err
	}
	if err := w.writeHashSections(h); err != nil {
		return err
	}

	// Total chunk count spans every segment, not just the last one still
	// held in w.tableOffsets, so it is derived from the sector total
	// rather than accumulated per-segment.
	totalChunks := uint32(w.totalSectors / uint64(w.opts.SectorsPerChunk))
	if w.totalSectors%uint64(w.opts.SectorsPerChunk) != 0 {
		totalChunks++
	}

	final := wire.EncodeMediaRecord(wire.MediaRecord{
		MediaType:        w.opts.MediaType,
		NumberOfChunks:   totalChunks,
		SectorsPerChunk:  w.opts.SectorsPerChunk,
		BytesPerSector:   w.opts.BytesPerSector,
		NumberOfSectors:  w.totalSectors,
		CompressionLevel: uint8(w.opts.CompressionLevel),
	})
	if _, err := w.segments[0].source.WriteAt(final, w.mediaSectionOff+wire.SectionHeaderSize); err != nil {
		return errors.Wrap(err, "patch media record")
	}

	h.media.NumberOfChunks = totalChunks
	h.media.NumberOfSectors = w.totalSectors

	for _, ps := range w.segments {
		if err := ps.pending.CloseAtomicallyReplace(); err != nil {
			return errors.Wrapf(err, "publish segment file %s", ps.path)
		}
	}
	return nil
}
