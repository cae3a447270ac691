// Package metatext parses and serializes the acquisition metadata carried
// as text inside header/header2/xheader sections and hash/xhash sections
//, plus the UTF-16LE line reader the
// header/header2 sub-format is read through.
package metatext

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Values is an ordered string-to-string table: insertion order is
// preserved alongside O(1) lookup, because the header sub-format's own
// field order is meaningful (writers conventionally emit a canonical
// order; re-serializing in a different order would still be valid EWF but
// would needlessly diverge from what produced the file).
type Values struct {
	keys []string
	m    map[string]string
}

// NewValues returns an empty table.
func NewValues() *Values {
	return &Values{m: make(map[string]string)}
}

// Set inserts or updates key. A new key is appended to the end of Keys.
func (v *Values) Set(key, value string) {
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = value
}

// Get returns key's value and whether it was present.
func (v *Values) Get(key string) (string, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Keys returns every key in insertion order.
func (v *Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len reports how many keys are set.
func (v *Values) Len() int { return len(v.keys) }

// ParseHeaderText parses the libewf header/header2 text sub-format: a
// line holding the number of categories, then for each category a name
// line followed by a tab-separated key line and a tab-separated value
// line. Only the first category is kept; in practice every EWF1 writer
// emits exactly one ("main").
func ParseHeaderText(text string) (*Values, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 4 {
		return nil, errors.Errorf("metatext: header text has %d lines, need at least 4", len(lines))
	}
	if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
		return nil, errors.Wrap(err, "metatext: header category count")
	}
	// lines[1] is the category name ("main"); skip it.
	keys := strings.Split(lines[2], "\t")
	vals := strings.Split(lines[3], "\t")

	out := NewValues()
	for i, k := range keys {
		if i >= len(vals) {
			break
		}
		out.Set(k, vals[i])
	}
	return out, nil
}

// EncodeHeaderText serializes v back into the single-category text
// sub-format ParseHeaderText reads.
func (v *Values) EncodeHeaderText() string {
	var keyLine, valLine strings.Builder
	for i, k := range v.keys {
		if i > 0 {
			keyLine.WriteByte('\t')
			valLine.WriteByte('\t')
		}
		keyLine.WriteString(k)
		valLine.WriteString(v.m[k])
	}
	return "1\nmain\n" + keyLine.String() + "\n" + valLine.String() + "\n\n"
}
