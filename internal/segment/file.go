package segment

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/go-forensics/ewfgo/internal/wire"
)

// SectionRef locates one section within a segment file: its parsed
// descriptor plus the absolute offset the descriptor itself starts at.
// PayloadOffset/PayloadSize describe the bytes after the 76-byte descriptor.
type SectionRef struct {
	Header        wire.SectionHeader
	Offset        int64
	PayloadOffset int64
	PayloadSize   int64
}

// File is one opened segment file: its byte source, its parsed file header
// and the ordered list of sections found by walking the chain.
type File struct {
	Source   ByteSource
	Header   wire.FileHeader
	Sections []SectionRef
	Path     string
}

// OpenFile opens path read-only and walks its section chain. log may be nil.
func OpenFile(path string, useMmap bool, log *zap.SugaredLogger) (*File, error) {
	var src ByteSource
	var err error
	if useMmap {
		src, err = OpenMmapSourceRead(path)
		if err != nil {
			src, err = OpenFileSourceRead(path)
		}
	} else {
		src, err = OpenFileSourceRead(path)
	}
	if err != nil {
		return nil, err
	}

	hdrBuf := make([]byte, wire.FileHeaderSize)
	if _, err := src.ReadAt(hdrBuf, 0); err != nil {
		src.Close()
		return nil, errors.Wrapf(err, "segment: read file header of %s", path)
	}
	hdr, err := wire.DecodeFileHeader(hdrBuf)
	if err != nil {
		src.Close()
		return nil, errors.Wrapf(err, "segment: %s", path)
	}

	sections, err := walkSections(src, log)
	if err != nil {
		src.Close()
		return nil, errors.Wrapf(err, "segment: %s", path)
	}

	return &File{Source: src, Header: hdr, Sections: sections, Path: path}, nil
}

// walkSections follows the descriptor chain starting at FileHeaderSize,
// tracking visited offsets so a corrupt NextOffset pointing backwards can
// never loop forever.
func walkSections(src ByteSource, log *zap.SugaredLogger) ([]SectionRef, error) {
	var out []SectionRef
	seen := make(map[int64]bool)
	offset := int64(wire.FileHeaderSize)

	for {
		if seen[offset] {
			return nil, errors.Errorf("segment: section chain revisits offset %d", offset)
		}
		seen[offset] = true

		buf := make([]byte, wire.SectionHeaderSize)
		if _, err := src.ReadAt(buf, offset); err != nil {
			return nil, errors.Wrapf(err, "segment: read section header at %d", offset)
		}
		hdr, err := wire.DecodeSectionHeader(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "segment: section header at %d", offset)
		}
		if hdr.Size < wire.SectionHeaderSize {
			return nil, errors.Errorf("segment: section %q at %d claims impossible size %d", hdr.Type, offset, hdr.Size)
		}
		if !wire.KnownSectionTypes[hdr.Type] && log != nil {
			log.Debugw("skipping unknown section tag", "tag", hdr.Type, "offset", offset)
		}

		ref := SectionRef{
			Header:        hdr,
			Offset:        offset,
			PayloadOffset: offset + wire.SectionHeaderSize,
			PayloadSize:   int64(hdr.Size) - wire.SectionHeaderSize,
		}
		out = append(out, ref)

		// "next" and "done" are both terminal for this file's own chain:
		// "next" means the image continues in the following segment file,
		// "done" means this was the last segment. Either way there is
		// nothing more to walk here, and both self-point their NextOffset,
		// so failing to stop here would trip the cycle guard above on the
		// very next iteration.
		if hdr.Type == "done" || hdr.Type == "next" || hdr.NextOffset == 0 {
			break
		}
		offset = int64(hdr.NextOffset)
	}
	return out, nil
}

// ReadPayload returns the payload bytes (descriptor excluded) of ref.
func (f *File) ReadPayload(ref SectionRef) ([]byte, error) {
	if ref.PayloadSize < 0 {
		return nil, fmt.Errorf("segment: negative payload size for section %q", ref.Header.Type)
	}
	buf := make([]byte, ref.PayloadSize)
	if _, err := f.Source.ReadAt(buf, ref.PayloadOffset); err != nil {
		return nil, errors.Wrapf(err, "segment: read payload of %q at %d", ref.Header.Type, ref.PayloadOffset)
	}
	return buf, nil
}

// FindAll returns every section in f whose type tag matches typ, in file order.
func (f *File) FindAll(typ string) []SectionRef {
	var out []SectionRef
	for _, s := range f.Sections {
		if s.Header.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// Close releases the underlying byte source.
func (f *File) Close() error {
	return f.Source.Close()
}
