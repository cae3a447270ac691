package metatext

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/clbanning/mxj"
	"github.com/pkg/errors"
)

// xheader and xhash sections carry their text zlib-compressed, same as
// header2; decompression uses the standard library's zlib here, while
// internal/chunk keeps klauspost's for the per-chunk performance path.

// InflateText zlib-decompresses a header/header2/xheader/xhash payload into
// its raw text: single-byte for header, UTF-16LE for header2, UTF-8 XML for
// xheader/xhash.
func InflateText(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "metatext: zlib open")
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "metatext: zlib inflate")
	}
	return out, nil
}

// ParseXML parses an xheader/xhash XML document (already UTF-8) into a
// Values table of its leaf elements, using mxj to avoid hand-rolling an XML
// walker for a handful of flat <key>value</key> entries. Keys are inserted
// in map iteration order, not document order, so the table's key order is
// not defined.
func ParseXML(doc []byte) (*Values, error) {
	m, err := mxj.NewMapXml(doc)
	if err != nil {
		return nil, errors.Wrap(err, "metatext: parse xheader/xhash XML")
	}

	out := NewValues()
	root, ok := singleChild(m)
	if !ok {
		return out, nil
	}
	children, ok := root.(map[string]interface{})
	if !ok {
		return out, nil
	}
	for k, v := range children {
		if s, ok := v.(string); ok {
			out.Set(k, s)
		}
	}
	return out, nil
}

func singleChild(m mxj.Map) (interface{}, bool) {
	for _, v := range m {
		return v, true
	}
	return nil, false
}
