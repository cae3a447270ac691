package ewf

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/go-forensics/ewfgo/internal/chunk"
	"github.com/go-forensics/ewfgo/internal/metatext"
	"github.com/go-forensics/ewfgo/internal/segment"
	"github.com/go-forensics/ewfgo/internal/wire"
)

// parseMetadata walks every section in h.set and populates the media
// record, header/hash value tables, error/session ranges and chunk table.
// It is the read-path counterpart to the write path's section emission in
// writer.go.
func (h *Handle) parseMetadata() error {
	if err := h.parseMedia(); err != nil {
		return err
	}
	h.parseHeader()
	h.parseHash()
	h.parseRanges()
	return h.parseTable()
}

func (h *Handle) parseMedia() error {
	for _, typ := range []string{"volume", "disk"} {
		for _, ref := range h.set.FindAll(typ) {
			payload, err := h.set.ReadPayload(ref)
			if err != nil {
				return wrapError(KindIO, "ewf.Open", err, "read media section")
			}
			if len(payload) < wire.MediaRecordSize {
				continue
			}
			rec, err := wire.DecodeMediaRecord(payload[:wire.MediaRecordSize])
			if err != nil {
				return wrapError(KindFormatInvalid, "ewf.Open", err, "decode media record")
			}
			h.media = rec
			return nil
		}
	}
	return newError(KindFormatInvalid, "ewf.Open", errNoMediaRecord)
}

func (h *Handle) parseHeader() {
	values := metatext.NewValues()

	for _, typ := range []string{"header2", "header"} {
		refs := h.set.FindAll(typ)
		if len(refs) == 0 {
			continue
		}
		payload, err := h.set.ReadPayload(refs[0])
		if err != nil {
			h.logf("could not read %s section: %v", typ, err)
			continue
		}
		text, err := metatext.InflateText(payload)
		if err != nil {
			h.logf("could not inflate %s section: %v", typ, err)
			continue
		}
		var joined string
		if typ == "header2" {
			lines, err := metatext.ReadAllLines(text)
			if err != nil {
				h.logf("could not decode %s section text: %v", typ, err)
				continue
			}
			joined = strings.Join(lines, "\n")
		} else {
			joined = string(text)
		}
		parsed, err := metatext.ParseHeaderText(joined)
		if err != nil {
			h.logf("could not parse %s section: %v", typ, err)
			continue
		}
		for _, k := range parsed.Keys() {
			v, _ := parsed.Get(k)
			values.Set(k, v)
		}
		break
	}

	if refs := h.set.FindAll("xheader"); len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if text, err := metatext.InflateText(payload); err == nil {
				if xv, err := metatext.ParseXML(text); err == nil {
					for _, k := range xv.Keys() {
						v, _ := xv.Get(k)
						values.Set(k, v)
					}
				}
			}
		}
	}

	h.header = values
}

func (h *Handle) parseHash() {
	if refs := h.set.FindAll("digest"); len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if rec, err := wire.DecodeDigestRecord(payload); err == nil {
				h.hash = metatext.HashValuesFromDigest(rec)
			}
		}
	}
	if refs := h.set.FindAll("hash"); h.hash == nil && len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if rec, err := wire.DecodeHashRecord(payload); err == nil {
				h.hash = metatext.HashValuesFromHash(rec)
			}
		}
	}
	if refs := h.set.FindAll("xhash"); len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if text, err := metatext.InflateText(payload); err == nil {
				if xv, err := metatext.ParseXML(text); err == nil {
					if h.hash == nil {
						h.hash = metatext.NewValues()
					}
					for _, k := range xv.Keys() {
						v, _ := xv.Get(k)
						h.hash.Set(k, v)
					}
				}
			}
		}
	}
}

func (h *Handle) parseRanges() {
	if refs := h.set.FindAll("error2"); len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if ranges, err := metatext.DecodeRangeTable(payload); err == nil {
				h.errorRanges = ranges
			} else {
				h.logf("could not decode error2 section: %v", err)
			}
		}
	}
	if refs := h.set.FindAll("session"); len(refs) > 0 {
		if payload, err := h.set.ReadPayload(refs[0]); err == nil {
			if ranges, err := metatext.DecodeRangeTable(payload); err == nil {
				h.sessionRanges = ranges
			} else {
				h.logf("could not decode session section: %v", err)
			}
		}
	}
}

// decodeTableSection parses one table/table2 section payload into the
// (offsets, compressed, baseOffset) triple the chunk builder needs.
func decodeTableSection(payload []byte) ([]int64, []bool, wire.TableHeader, error) {
	if len(payload) < 24 {
		return nil, nil, wire.TableHeader{}, errors.New("metatext: table section shorter than its header")
	}
	hdr, err := wire.DecodeTableHeader(payload[:24])
	if err != nil {
		return nil, nil, wire.TableHeader{}, err
	}
	entries, err := wire.DecodeTableEntries(payload[24:], hdr.EntryCount)
	if err != nil {
		return nil, nil, wire.TableHeader{}, err
	}
	offsets := make([]int64, len(entries))
	compressed := make([]bool, len(entries))
	for i, e := range entries {
		compressed[i] = e&wire.CompressedEntryFlag != 0
		rel := int64(e &^ wire.CompressedEntryFlag)
		offsets[i] = int64(hdr.BaseOffset) + rel
	}
	return offsets, compressed, hdr, nil
}

// decodeSegmentTable decodes one segment's primary chunk-location entries,
// preferring its "table" section but falling back to "table2" whole-cloth
// when the table section itself fails to parse (a corrupt checksum over
// the entries, not merely one bad stored chunk downstream).
// usedTable2AsPrimary reports which path was taken, so the caller can
// account every chunk in the segment as having needed the fallback.
func (h *Handle) decodeSegmentTable(f *segment.File, tableRefs, table2Refs []segment.SectionRef) (offsets []int64, compressed []bool, usedTable2AsPrimary bool, err error) {
	if len(tableRefs) > 0 {
		payload, rerr := f.ReadPayload(tableRefs[0])
		if rerr != nil {
			h.logf("segment %d: could not read table section (%v), falling back to table2", f.Header.SegmentNumber, rerr)
		} else if offsets, compressed, _, derr := decodeTableSection(payload); derr == nil {
			return offsets, compressed, false, nil
		} else {
			h.logf("segment %d: table section corrupt (%v), falling back to table2", f.Header.SegmentNumber, derr)
		}
	}

	if len(table2Refs) == 0 {
		return nil, nil, false, newError(KindFormatInvalid, "ewf.Open", errNoTableSections)
	}
	payload, rerr := f.ReadPayload(table2Refs[0])
	if rerr != nil {
		return nil, nil, false, wrapError(KindIO, "ewf.Open", rerr, "read table2 section")
	}
	offsets, compressed, _, derr := decodeTableSection(payload)
	if derr != nil {
		return nil, nil, false, wrapError(KindFormatInvalid, "ewf.Open", derr, "decode table2 entries")
	}
	return offsets, compressed, len(tableRefs) > 0, nil
}

// parseTable builds the chunk table from every segment's table (preferred
// for reads) and table2 (kept alongside as a retry mirror) sections. A
// segment carrying neither contributes no chunks; a set in which no segment
// carries either is a format error. Primary and mirror are decoded
// and validated independently so a corrupt table section never prevents a
// healthy table2 from serving its chunks.
func (h *Handle) parseTable() error {
	builder := chunk.NewBuilder()
	any := false

	for _, f := range h.set.Files {
		tableRefs := f.FindAll("table")
		table2Refs := f.FindAll("table2")
		if len(tableRefs) == 0 && len(table2Refs) == 0 {
			continue
		}
		any = true

		// boundary is the true end of the sectors payload: wherever the
		// "table" section starts when one exists, else wherever "table2"
		// starts. It is the same physical boundary regardless of which of
		// the two sections we end up decoding entries from.
		boundaryRefs := table2Refs
		if len(tableRefs) > 0 {
			boundaryRefs = tableRefs
		}
		boundary := boundaryRefs[0].Offset

		offsets, compressed, usedTable2AsPrimary, err := h.decodeSegmentTable(f, tableRefs, table2Refs)
		if err != nil {
			return err
		}
		if err := builder.AddSegment(f.Header.SegmentNumber, offsets, compressed, boundary); err != nil {
			return wrapError(KindFormatInvalid, "ewf.Open", err, "build chunk table")
		}
		if usedTable2AsPrimary {
			// The table section's own checksum failed; every chunk in this
			// segment had to be located from its table2 mirror instead.
			h.acquisitionErrors += len(offsets)
			h.logf("segment %d: table section unusable, used table2 for all %d chunks", f.Header.SegmentNumber, len(offsets))
			continue
		}

		if len(table2Refs) > 0 {
			mref := table2Refs[0]
			mpayload, err := f.ReadPayload(mref)
			if err != nil {
				h.logf("could not read table2 section of segment %d: %v", f.Header.SegmentNumber, err)
				continue
			}
			moffsets, mcompressed, _, err := decodeTableSection(mpayload)
			if err != nil {
				h.logf("could not decode table2 section of segment %d: %v", f.Header.SegmentNumber, err)
				continue
			}
			if err := builder.AddMirrorSegment(f.Header.SegmentNumber, moffsets, mcompressed, boundary, len(offsets)); err != nil {
				h.logf("table2 mirror unusable for segment %d: %v", f.Header.SegmentNumber, err)
			}
		}
	}

	if !any {
		return newError(KindFormatInvalid, "ewf.Open", errNoTableSections)
	}
	h.table = builder.Build()
	return nil
}

func (h *Handle) logf(format string, args ...interface{}) {
	if h.log == nil {
		return
	}
	h.log.Debugf(format, args...)
}
