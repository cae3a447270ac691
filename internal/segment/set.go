package segment

import (
	"go.uber.org/zap"

	"github.com/pkg/errors"
)

// Set is every segment file belonging to one acquisition, in segment order.
type Set struct {
	Files []*File
	log   *zap.SugaredLogger
}

// OpenSet discovers and opens every segment file in the same set as
// anyPath (via Glob), walking each one's section chain. useMmap selects the
// mmap-backed ByteSource for all but write scenarios. log may be nil.
func OpenSet(anyPath string, useMmap bool, log *zap.SugaredLogger) (*Set, error) {
	paths, err := Glob(anyPath)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("segment: no segment files found matching %s", anyPath)
	}

	set := &Set{log: log}
	for i, p := range paths {
		f, err := OpenFile(p, useMmap, log)
		if err != nil {
			set.Close()
			return nil, err
		}
		want := uint16(i + 1)
		if f.Header.SegmentNumber != want {
			set.Close()
			return nil, errors.Errorf("segment: %s declares segment number %d, expected %d (segments must be contiguous starting at 1)", p, f.Header.SegmentNumber, want)
		}
		set.Files = append(set.Files, f)
	}

	if err := set.checkTermination(); err != nil {
		set.Close()
		return nil, err
	}

	set.logRestartData()
	return set, nil
}

// checkTermination verifies every non-final segment ends its section chain
// with a "next" section and the final segment ends with "done".
func (s *Set) checkTermination() error {
	for i, f := range s.Files {
		if len(f.Sections) == 0 {
			return errors.Errorf("segment: %s has no sections", f.Path)
		}
		last := f.Sections[len(f.Sections)-1].Header.Type
		isFinal := i == len(s.Files)-1
		if isFinal && last != "done" {
			return errors.Errorf("segment: %s is the last segment but ends with %q, not \"done\"", f.Path, last)
		}
		if !isFinal && last != "next" {
			return errors.Errorf("segment: %s is not the last segment but ends with %q, not \"next\"", f.Path, last)
		}
	}
	return nil
}

// logRestartData emits an advisory log line for any "restart data" section
// found in the set. These sections describe a prior acquisition attempt
// that stalled and was resumed; their content is advisory
// only and never blocks opening the image.
func (s *Set) logRestartData() {
	if s.log == nil {
		return
	}
	for _, f := range s.Files {
		for _, ref := range f.FindAll("restart data") {
			s.log.Infow("segment file carries restart data from a resumed acquisition",
				"file", f.Path, "size", ref.PayloadSize)
		}
	}
}

// FindAll returns every section across the whole set, in segment-chain
// order, whose type tag matches typ.
func (s *Set) FindAll(typ string) []SectionRef {
	var out []SectionRef
	for _, f := range s.Files {
		out = append(out, f.FindAll(typ)...)
	}
	return out
}

// ReadPayload locates the owning File for ref and reads its payload. ref
// must have come from this set.
func (s *Set) ReadPayload(ref SectionRef) ([]byte, error) {
	for _, f := range s.Files {
		for _, r := range f.Sections {
			if r.Offset == ref.Offset && r.Header.Type == ref.Header.Type {
				return f.ReadPayload(ref)
			}
		}
	}
	return nil, errors.New("segment: section not found in this set")
}

// Close releases every open segment file.
func (s *Set) Close() error {
	var first error
	for _, f := range s.Files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
