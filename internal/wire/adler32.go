package wire

import "hash/adler32"

// Checksum computes the Adler-32 checksum (RFC 1950, modulus 65521, initial
// value 1) over data, matching every integrity field in the EWF wire format.
func Checksum(data []byte) uint32 {
	return adler32.Checksum(data)
}

// VerifyChecksum reports whether data's Adler-32 matches want. A want of 0
// means "no checksum recorded" and is always accepted, mirroring the
// behavior legacy writers rely on for sections that omit it.
func VerifyChecksum(data []byte, want uint32) bool {
	if want == 0 {
		return true
	}
	return Checksum(data) == want
}
