package metatext

import (
	"encoding/hex"

	"github.com/go-forensics/ewfgo/internal/wire"
)

// HashValuesFromDigest builds the same Values shape as ParseXML's xhash
// output from a binary digest/hash section, so callers see one uniform
// table regardless of which section actually carried the hash.
func HashValuesFromDigest(d wire.DigestRecord) *Values {
	v := NewValues()
	v.Set("MD5", hex.EncodeToString(d.MD5[:]))
	v.Set("SHA1", hex.EncodeToString(d.SHA1[:]))
	return v
}

// HashValuesFromHash builds a Values table from the smaller `hash` section,
// which carries only an MD5.
func HashValuesFromHash(h wire.HashRecord) *Values {
	v := NewValues()
	v.Set("MD5", hex.EncodeToString(h.MD5[:]))
	return v
}
