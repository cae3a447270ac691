package ewf

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	errAlreadyClosed        = pkgerrors.New("handle already closed")
	errBadWhence            = pkgerrors.New("invalid whence")
	errNegativeOffset       = pkgerrors.New("resulting offset is negative")
	errOffsetPastEnd        = pkgerrors.New("resulting offset is past the end of the medium")
	errTableTooShort        = pkgerrors.New("chunk table does not cover the full media size")
	errWriteOnly            = pkgerrors.New("handle was opened for writing, not reading")
	errReadOnly             = pkgerrors.New("handle was opened for reading, not writing")
	errBadChunkGeometry     = pkgerrors.New("bytes-per-sector and sectors-per-chunk must both be positive")
	errChunkIndexOutOfRange = pkgerrors.New("chunk index out of range")
	errChunkShort           = pkgerrors.New("chunk decoded to fewer bytes than the media geometry requires")
	errChunkSegmentMissing  = pkgerrors.New("chunk descriptor references a segment not present in this set")
	errNoMediaRecord        = pkgerrors.New("no volume/disk section found")
	errNoTableSections      = pkgerrors.New("no table/table2 sections found")
	errMetadataFrozen       = pkgerrors.New("header/hash values cannot change after the first byte has been written")
	errMD5IsComputed        = pkgerrors.New("the MD5 hash value is computed from the written stream and cannot be set")
	errEWF2Unsupported      = pkgerrors.New("EWF2/Lx01 segment files are not supported (no bzip2 chunk method)")
)

// Kind classifies what went wrong, independent of the specific
// operation. Callers that need to react differently to, say, a
// corrupt image versus a caller misuse should switch on Kind rather than
// pattern-match error strings.
type Kind int

const (
	// KindArgument: a caller passed a value the API rejects outright
	// (negative offset, zero sectors-per-chunk, and so on).
	KindArgument Kind = iota
	// KindState: the call is invalid in the handle's current state
	// (writing to a read-only handle, reading after Close).
	KindState
	// KindIO: the underlying byte source failed (disk error, permission,
	// file vanished).
	KindIO
	// KindFormatInvalid: the bytes read back do not parse as EWF at all,
	// or a structural invariant the format guarantees was violated.
	KindFormatInvalid
	// KindIntegrityMismatch: the bytes parsed fine but a checksum, hash or
	// recorded size did not match what was actually read.
	KindIntegrityMismatch
	// KindUnsupported: the bytes are valid EWF but use a feature this
	// implementation does not handle (e.g. an EWF2 bzip2 chunk method).
	KindUnsupported
	// KindResource: a resource limit was hit (segment naming range
	// exhausted, cache allocation failed).
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindState:
		return "state"
	case KindIO:
		return "io"
	case KindFormatInvalid:
		return "format-invalid"
	case KindIntegrityMismatch:
		return "integrity-mismatch"
	case KindUnsupported:
		return "unsupported"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every exported operation returns on
// failure. Op names the failing operation (e.g. "ewf.Open", "Handle.ReadAt").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Cause exposes the wrapped cause to github.com/pkg/errors-style callers.
func (e *Error) Cause() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func wrapError(kind Kind, op string, err error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: pkgerrors.Wrap(err, msg)}
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
