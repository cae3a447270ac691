package wire

import (
	"bytes"
	"fmt"

	"github.com/go-forensics/ewfgo/internal/ioutil"
)

// FileHeaderSize is the signature plus segment header: the first
// section always starts at this offset.
const FileHeaderSize = 13

// Variant identifies the segment naming/signature family.
type Variant int

const (
	VariantEWF1 Variant = iota
	VariantLogicalEWF1
	VariantEWF2
	VariantLogicalEWF2
	VariantSMART
)

var signatures = map[Variant][8]byte{
	VariantEWF1:        {'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00},
	VariantLogicalEWF1: {'L', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00},
	VariantEWF2:        {'E', 'V', 'F', 0x32, 0x0d, 0x0a, 0x81, 0x00},
	VariantLogicalEWF2: {'L', 'V', 'F', 0x32, 0x0d, 0x0a, 0x81, 0x00},
	VariantSMART:       {'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00},
}

// ExtensionLeadLetter is the first character of the 3-character segment
// extension for each variant ('E' standard, 'L' logical, 's' SMART).
var ExtensionLeadLetter = map[Variant]byte{
	VariantEWF1:        'E',
	VariantLogicalEWF1: 'L',
	VariantEWF2:        'E',
	VariantLogicalEWF2: 'L',
	VariantSMART:       's',
}

// FileHeader is the 13-byte signature + segment header that opens every
// segment file.
type FileHeader struct {
	Variant       Variant
	SegmentNumber uint16
}

// DecodeFileHeader parses the 13-byte file header and identifies the variant
// by signature. VariantSMART shares the EWF1 signature, so such a file
// decodes as VariantEWF1.
func DecodeFileHeader(b []byte) (FileHeader, error) {
	if len(b) != FileHeaderSize {
		return FileHeader{}, fmt.Errorf("wire: file header must be %d bytes, got %d", FileHeaderSize, len(b))
	}
	var variant Variant
	found := false
	for _, v := range []Variant{VariantEWF1, VariantLogicalEWF1, VariantEWF2, VariantLogicalEWF2, VariantSMART} {
		sig := signatures[v]
		if bytes.Equal(b[0:8], sig[:]) {
			variant = v
			found = true
			break
		}
	}
	if !found {
		return FileHeader{}, fmt.Errorf("wire: unrecognized segment signature % x", b[0:8])
	}
	return FileHeader{
		Variant:       variant,
		SegmentNumber: ioutil.LE16(b[9:11]),
	}, nil
}

// EncodeFileHeader serializes h into a fresh 13-byte header.
func EncodeFileHeader(h FileHeader) []byte {
	b := make([]byte, FileHeaderSize)
	sig := signatures[h.Variant]
	copy(b[0:8], sig[:])
	b[8] = 1
	ioutil.PutLE16(b[9:11], h.SegmentNumber)
	return b
}
