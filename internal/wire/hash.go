package wire

import (
	"fmt"

	"github.com/go-forensics/ewfgo/internal/ioutil"
)

// HashRecordSize is the size of a `hash` section: 16-byte MD5 + 16 reserved + checksum.
const HashRecordSize = 36

// DigestRecordSize is the size of a `digest` section: MD5 + SHA-1 + 40 reserved + checksum.
const DigestRecordSize = 80

// HashRecord is the decoded form of a `hash` section.
type HashRecord struct {
	MD5 [16]byte
}

// DigestRecord is the decoded form of a `digest` section.
type DigestRecord struct {
	MD5  [16]byte
	SHA1 [20]byte
}

// DecodeHashRecord parses a 36-byte `hash` section.
func DecodeHashRecord(b []byte) (HashRecord, error) {
	if len(b) != HashRecordSize {
		return HashRecord{}, fmt.Errorf("wire: hash record must be %d bytes, got %d", HashRecordSize, len(b))
	}
	sum := ioutil.LE32(b[32:36])
	if !VerifyChecksum(b[:32], sum) {
		return HashRecord{}, fmt.Errorf("wire: hash record checksum mismatch")
	}
	var r HashRecord
	copy(r.MD5[:], b[0:16])
	return r, nil
}

// EncodeHashRecord serializes r into a fresh 36-byte record.
func EncodeHashRecord(r HashRecord) []byte {
	b := make([]byte, HashRecordSize)
	copy(b[0:16], r.MD5[:])
	ioutil.PutLE32(b[32:36], Checksum(b[:32]))
	return b
}

// DecodeDigestRecord parses an 80-byte `digest` section.
func DecodeDigestRecord(b []byte) (DigestRecord, error) {
	if len(b) != DigestRecordSize {
		return DigestRecord{}, fmt.Errorf("wire: digest record must be %d bytes, got %d", DigestRecordSize, len(b))
	}
	sum := ioutil.LE32(b[76:80])
	if !VerifyChecksum(b[:76], sum) {
		return DigestRecord{}, fmt.Errorf("wire: digest record checksum mismatch")
	}
	var r DigestRecord
	copy(r.MD5[:], b[0:16])
	copy(r.SHA1[:], b[16:36])
	return r, nil
}

// EncodeDigestRecord serializes r into a fresh 80-byte record.
func EncodeDigestRecord(r DigestRecord) []byte {
	b := make([]byte, DigestRecordSize)
	copy(b[0:16], r.MD5[:])
	copy(b[16:36], r.SHA1[:])
	// b[36:76] reserved; checksum trails the whole record.
	ioutil.PutLE32(b[76:80], Checksum(b[:76]))
	return b
}
