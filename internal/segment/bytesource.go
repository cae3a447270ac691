// Package segment implements the EWF segment-file container: the byte
// source abstraction, the per-file signature/section-list container
// and the multi-file naming/glob rule.
package segment

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// ByteSource is the minimal capability set the core needs over a named
// segment file. It is deliberately small: opening is handled by the
// constructors below, not by this interface, so a ByteSource is always
// already-open.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Truncate(size int64) error
	Close() error
}

// fileSource is the default ByteSource: a plain *os.File.
type fileSource struct {
	f *os.File
}

// OpenFileSourceRead opens filename for reading only.
func OpenFileSourceRead(filename string) (ByteSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "segment: open read")
	}
	return &fileSource{f: f}, nil
}

// CreateFileSourceWrite atomically creates filename for writing via
// renameio, so a crash mid-write never leaves a half-initialized segment
// visible under its final name.
func CreateFileSourceWrite(filename string) (ByteSource, *renameio.PendingFile, error) {
	pf, err := renameio.TempFile("", filename)
	if err != nil {
		return nil, nil, errors.Wrap(err, "segment: create write")
	}
	return &fileSource{f: pf.File}, pf, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error)  { return s.f.ReadAt(p, off) }
func (s *fileSource) WriteAt(p []byte, off int64) (int, error) { return s.f.WriteAt(p, off) }
func (s *fileSource) Truncate(size int64) error                { return s.f.Truncate(size) }
func (s *fileSource) Close() error                             { return s.f.Close() }

func (s *fileSource) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "segment: stat")
	}
	return fi.Size(), nil
}

// mmapSource is a read-only ByteSource backed by a memory-mapped file,
// used by read-mode opens where the OS page cache can serve repeat chunk
// reads without a syscall per access.
type mmapSource struct {
	f   *os.File
	m   mmap.MMap
	len int64
}

// OpenMmapSourceRead memory-maps filename read-only. Falls back to the
// caller needing a plain fileSource if the file is empty (mmap rejects
// zero-length mappings).
func OpenMmapSourceRead(filename string) (ByteSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "segment: open read (mmap)")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "segment: stat (mmap)")
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, errors.New("segment: cannot mmap an empty segment file")
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "segment: mmap")
	}
	return &mmapSource{f: f, m: m, len: fi.Size()}, nil
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.len {
		return 0, os.ErrClosed
	}
	n := copy(p, s.m[off:])
	return n, nil
}

func (s *mmapSource) WriteAt(p []byte, off int64) (int, error) {
	return 0, errors.New("segment: mmap source is read-only")
}

func (s *mmapSource) Truncate(size int64) error { return errors.New("segment: mmap source is read-only") }
func (s *mmapSource) Size() (int64, error)      { return s.len, nil }

func (s *mmapSource) Close() error {
	if err := s.m.Unmap(); err != nil {
		s.f.Close()
		return errors.Wrap(err, "segment: munmap")
	}
	return s.f.Close()
}
