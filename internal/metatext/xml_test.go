package metatext

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestInflateTextRoundTrip(t *testing.T) {
	payload := deflate(t, "hello xheader")
	got, err := InflateText(payload)
	require.NoError(t, err)
	require.Equal(t, "hello xheader", string(got))
}

func TestInflateTextRejectsGarbage(t *testing.T) {
	_, err := InflateText([]byte("not zlib data"))
	require.Error(t, err)
}

func TestParseXMLExtractsLeafValues(t *testing.T) {
	doc := []byte(`<xheader><case_number>42</case_number><examiner>A. Forensics</examiner></xheader>`)
	v, err := ParseXML(doc)
	require.NoError(t, err)

	val, ok := v.Get("case_number")
	require.True(t, ok)
	require.Equal(t, "42", val)

	val, ok = v.Get("examiner")
	require.True(t, ok)
	require.Equal(t, "A. Forensics", val)
}

func TestParseXMLRejectsMalformedDocument(t *testing.T) {
	_, err := ParseXML([]byte("<xheader><unterminated>"))
	require.Error(t, err)
}
