// Package chunk implements the chunk table, the chunk compression codec and
// the bounded chunk cache.
package chunk

import (
	"github.com/pkg/errors"
)

// Flags records out-of-band facts about one chunk discovered at table-build
// or encode time, beyond what the wire entry itself carries.
type Flags uint8

const (
	// Compressed marks a chunk stored deflated; cleared, it is stored raw
	// with a trailing Adler-32.
	Compressed Flags = 1 << iota
	// Empty marks a chunk whose plaintext is a single repeated byte,
	// detected by the empty-block scan at encode time. Informational only:
	// such chunks are still written (and read back) as ordinary chunks.
	Empty
	// Tainted marks a chunk whose primary descriptor failed its integrity
	// check and had to be served from its table2 mirror.
	Tainted
	// FromTable2 marks a descriptor that was decoded from a table2 section
	// rather than a table section.
	FromTable2
)

// Descriptor locates one chunk's stored bytes within a segment set.
type Descriptor struct {
	Segment uint16
	Offset  int64
	Length  uint32
	Flags   Flags
}

// Compressed reports whether the descriptor's chunk is stored deflated.
func (d Descriptor) Compressed() bool { return d.Flags&Compressed != 0 }

// Table maps a global chunk index to the descriptor of its stored bytes.
// It is a dense slice, not a map: chunk numbers are assigned sequentially
// from 0 and every EWF image accounts for every chunk, so a slice gives
// O(1) lookup with no hashing overhead.
//
// Every table/table2 pair parsed at open is kept, not just the preferred
// one: mirror holds the table2-derived descriptor for each chunk whose
// segment carried one, so a primary entry that fails its checksum at
// decode time can be retried against the independently-decoded mirror
// instead of simply trusting whichever section happened to parse first.
type Table struct {
	entries []Descriptor
	mirror  []Descriptor // same length as entries; zero Descriptor where no mirror exists
	hasMir  []bool
}

// Len returns the number of chunks the table describes.
func (t *Table) Len() int { return len(t.entries) }

// Get returns the descriptor for chunk index i.
func (t *Table) Get(i int) (Descriptor, bool) {
	if i < 0 || i >= len(t.entries) {
		return Descriptor{}, false
	}
	return t.entries[i], true
}

// GetMirror returns the table2-derived descriptor for chunk index i, if
// this table retained one for that chunk's segment.
func (t *Table) GetMirror(i int) (Descriptor, bool) {
	if i < 0 || i >= len(t.mirror) || !t.hasMir[i] {
		return Descriptor{}, false
	}
	return t.mirror[i], true
}

// Builder accumulates per-segment table entries into one flat Table in
// chunk order. Entries within a segment are appended contiguously, exactly
// as the sectors section packs their chunk data.
type Builder struct {
	entries []Descriptor
	mirror  []Descriptor
	hasMir  []bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// decodeSegment turns one segment's parsed table/table2 offsets into
// descriptors; shared by AddSegment and AddMirrorSegment so the primary
// and mirror paths apply identical length/bounds logic.
func decodeSegment(segment uint16, offsets []int64, compressed []bool, sectionEnd int64) ([]Descriptor, error) {
	if len(offsets) != len(compressed) {
		return nil, errors.New("chunk: offsets/compressed length mismatch")
	}
	out := make([]Descriptor, len(offsets))
	for i, off := range offsets {
		var length int64
		if i+1 < len(offsets) {
			length = offsets[i+1] - off
		} else {
			length = sectionEnd - off
		}
		if length <= 0 {
			return nil, errors.Errorf("chunk: non-positive chunk length at segment %d index %d", segment, i)
		}
		flags := Flags(0)
		if compressed[i] {
			flags |= Compressed
		}
		out[i] = Descriptor{Segment: segment, Offset: off, Length: uint32(length), Flags: flags}
	}
	return out, nil
}

// AddSegment appends the chunk descriptors for one segment's primary
// (table-section-derived) entries. offsets holds the absolute chunk
// offsets (the table's base offset already added to each 31-bit entry) and
// compressed the entries' compressed-flag MSBs, split out by the caller;
// sectionEnd is the absolute offset one past the last byte of chunk data
// in this segment (normally the start of the section that follows the
// sectors data). A chunk's length is the distance to the next chunk's
// offset, or to sectionEnd for the segment's final chunk. AddSegment
// appends an empty mirror slot per chunk, so a segment with no
// AddMirrorSegment call simply has no mirrors and later segments stay
// aligned.
func (b *Builder) AddSegment(segment uint16, offsets []int64, compressed []bool, sectionEnd int64) error {
	descs, err := decodeSegment(segment, offsets, compressed, sectionEnd)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, descs...)
	for range descs {
		b.mirror = append(b.mirror, Descriptor{})
		b.hasMir = append(b.hasMir, false)
	}
	return nil
}

// AddMirrorSegment fills in the table2-derived mirror descriptors for the
// segment most recently added via AddSegment, flagging the chunk whose
// Flags carries FromTable2 on the mirror side. primaryCount must equal the
// number of primary entries just added for this segment; a mismatch means
// the table/table2 pair disagree on chunk count, and an error is returned
// with no mirror recorded for this segment rather than corrupting alignment.
func (b *Builder) AddMirrorSegment(segment uint16, offsets []int64, compressed []bool, sectionEnd int64, primaryCount int) error {
	descs, err := decodeSegment(segment, offsets, compressed, sectionEnd)
	if err != nil {
		return err
	}
	if len(descs) != primaryCount {
		return errors.Errorf("chunk: table2 entry count (%d) disagrees with table (%d) for segment %d", len(descs), primaryCount, segment)
	}
	start := len(b.mirror) - primaryCount
	if start < 0 {
		return errors.New("chunk: AddMirrorSegment called before a matching AddSegment")
	}
	for i, d := range descs {
		d.Flags |= FromTable2
		b.mirror[start+i] = d
		b.hasMir[start+i] = true
	}
	return nil
}

// Build finalizes the accumulated entries into a Table.
func (b *Builder) Build() *Table {
	return &Table{entries: b.entries, mirror: b.mirror, hasMir: b.hasMir}
}
