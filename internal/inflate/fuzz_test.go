package inflate

import (
	"bytes"
	"compress/zlib"
	"testing"
)

// addMinimalSeeds adds a handful of small, well-formed zlib streams to the
// corpus: a stored block, a fixed-Huffman block, and a real dynamic-Huffman
// stream produced by the standard library's own compressor.
func addMinimalSeeds(f *testing.F) {
	f.Helper()
	f.Add(zlibStoredWrap(nil))
	f.Add(zlibStoredWrap([]byte("Hello, world!")))
	f.Add([]byte{0x78, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01}) // S2: empty fixed-Huffman block

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(bytes.Repeat([]byte("fuzz me if you can "), 20)) //nolint:errcheck
	w.Close()                                                 //nolint:errcheck
	f.Add(buf.Bytes())
}

// FuzzInflate guards against panics (out-of-bounds slice access, infinite
// loops aside) when Inflate is handed arbitrary, possibly truncated or
// corrupted zlib/DEFLATE streams.
func FuzzInflate(f *testing.F) {
	addMinimalSeeds(f)

	f.Fuzz(func(t *testing.T, data []byte) {
		Inflate(data) //nolint:errcheck
	})
}
