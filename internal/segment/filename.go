package segment

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-forensics/ewfgo/internal/wire"
)

// Extension computes the 3-character extension for segment number n of the
// given variant: .E01-.E99, then .EAA-.EZZ (segments 100-775), mirroring
// the scheme libewf's acquisition tools use once a set runs past 99
// segments. Numbers past .EZZ are rejected; the scheme does not continue
// into .FAA.
func Extension(variant wire.Variant, n uint16) (string, error) {
	if n == 0 {
		return "", errors.New("segment: segment numbers start at 1")
	}
	lead := wire.ExtensionLeadLetter[variant]
	if n <= 99 {
		return fmt.Sprintf("%c%02d", lead, n), nil
	}
	// Beyond 99 the tens/units digits become letters: EAA, EAB, ... EAZ, EBA, ...
	idx := n - 100
	if idx >= 26*26 {
		return "", errors.New("segment: segment number exceeds the naming scheme's range")
	}
	second := byte('A' + idx/26)
	third := byte('A' + idx%26)
	return fmt.Sprintf("%c%c%c", lead, second, third), nil
}

// Glob returns every segment filename belonging to the same set as anyPath,
// discovered by replacing its extension's digits with the full legal range
// and keeping whatever exists on disk, sorted by segment number.
func Glob(anyPath string) ([]string, error) {
	dir := filepath.Dir(anyPath)
	base := filepath.Base(anyPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if len(ext) != 4 {
		return nil, errors.Errorf("segment: %q does not look like a segment filename", anyPath)
	}
	lead := ext[1]

	pattern := filepath.Join(dir, stem+"."+string(lead)+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "segment: glob")
	}

	type numbered struct {
		path string
		n    uint16
	}
	var found []numbered
	for _, m := range matches {
		suffix := strings.TrimPrefix(filepath.Ext(m), ".")
		if len(suffix) != 3 || suffix[0] != lead {
			continue
		}
		n, ok := parseSuffix(suffix)
		if !ok {
			continue
		}
		found = append(found, numbered{path: m, n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.path
	}
	return out, nil
}

// parseSuffix inverts Extension's digit/letter encoding for a 3-character
// suffix (the lead letter already stripped to suffix[0]).
func parseSuffix(suffix string) (uint16, bool) {
	a, b := suffix[1], suffix[2]
	if a >= '0' && a <= '9' && b >= '0' && b <= '9' {
		n := uint16(a-'0')*10 + uint16(b-'0')
		if n == 0 {
			return 0, false
		}
		return n, true
	}
	if a >= 'A' && a <= 'Z' && b >= 'A' && b <= 'Z' {
		return 100 + uint16(a-'A')*26 + uint16(b-'A'), true
	}
	return 0, false
}
