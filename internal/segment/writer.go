package segment

import (
	"io"

	"github.com/orcaman/writerseeker"

	"github.com/go-forensics/ewfgo/internal/wire"
)

// PayloadBuilder accumulates a section's payload bytes before its final
// size is known, exactly the problem writerseeker exists for: the section
// descriptor that precedes the payload needs that size up front, so the
// payload is staged in memory first and only written once.
type PayloadBuilder struct {
	ws  writerseeker.WriterSeeker
	len int64
}

// NewPayloadBuilder returns an empty builder.
func NewPayloadBuilder() *PayloadBuilder { return &PayloadBuilder{} }

// Writer exposes the builder as an io.Writer for callers that encode
// directly into it (e.g. a chunk codec writing compressed output).
func (b *PayloadBuilder) Writer() io.Writer { return b }

// Write implements io.Writer, appending p at the current end of the
// buffer and advancing Len.
func (b *PayloadBuilder) Write(p []byte) (int, error) {
	n, err := b.ws.Write(p)
	b.len += int64(n)
	return n, err
}

// Len reports how many bytes have been written so far, the offset the
// next Write will land at.
func (b *PayloadBuilder) Len() int64 { return b.len }

// Bytes returns everything written so far.
func (b *PayloadBuilder) Bytes() []byte {
	r := b.ws.Reader()
	buf, _ := io.ReadAll(r)
	return buf
}

// EncodeSection serializes one complete section (descriptor + payload) as
// it will sit at absolute offset off within the segment file. isLast marks
// the closing "done"/"next" section, whose NextOffset points at itself
// rather than at a following section.
func EncodeSection(typ string, payload []byte, off int64, isLast bool) []byte {
	size := uint64(wire.SectionHeaderSize + len(payload))
	next := uint64(off) + size
	if isLast {
		next = uint64(off)
	}
	hdr := wire.EncodeSectionHeader(wire.SectionHeader{
		Type:       typ,
		NextOffset: next,
		Size:       size,
	})
	out := make([]byte, 0, len(hdr)+len(payload))
	out = append(out, hdr...)
	out = append(out, payload...)
	return out
}
