package pngchunk

import (
	"testing"

	"github.com/Rublue3748/image-parser/internal/bytescanner"
)

// buildChunk frames a single chunk: big-endian length, 4-byte type,
// payload, and a 4-byte CRC placeholder (unverified by this package).
func buildChunk(chunkType string, payload []byte) []byte {
	n := len(payload)
	out := []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	out = append(out, chunkType...)
	out = append(out, payload...)
	out = append(out, 0, 0, 0, 0)
	return out
}

func ihdrPayload(width, height uint32, bitDepth, colorType uint8) []byte {
	p := []byte{
		byte(width >> 24), byte(width >> 16), byte(width >> 8), byte(width),
		byte(height >> 24), byte(height >> 16), byte(height >> 8), byte(height),
		bitDepth, colorType,
		0, // compression method
		0, // filter method
		0, // interlace method
	}
	return p
}

func buildPNG(chunks ...[]byte) []byte {
	out := append([]byte(nil), Signature[:]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestParseRejectsBadSignature(t *testing.T) {
	s := bytescanner.New([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	if _, err := Parse(s); err != ErrNotPNG {
		t.Errorf("Parse: err = %v, want ErrNotPNG", err)
	}
}

func TestParseRejectsShortSignature(t *testing.T) {
	s := bytescanner.New([]byte{0x89, 'P', 'N'})
	if _, err := Parse(s); err == nil {
		t.Error("expected error for truncated signature")
	}
}

func TestParseMinimalRGB(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(4, 1, 8, 2))
	idat := buildChunk("IDAT", []byte{0xAA, 0xBB})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat, iend)

	p, err := Parse(bytescanner.New(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Header.Width != 4 || p.Header.Height != 1 {
		t.Errorf("Header dims = %dx%d, want 4x1", p.Header.Width, p.Header.Height)
	}
	if p.Header.ColorType != ColorRGB {
		t.Errorf("ColorType = %d, want ColorRGB", p.Header.ColorType)
	}
	if len(p.IDAT) != 2 {
		t.Errorf("IDAT len = %d, want 2", len(p.IDAT))
	}
}

func TestParseConcatenatesMultipleIDAT(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 0))
	idat1 := buildChunk("IDAT", []byte{0x01, 0x02})
	idat2 := buildChunk("IDAT", []byte{0x03, 0x04})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat1, idat2, iend)

	p, err := Parse(bytescanner.New(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if len(p.IDAT) != len(want) {
		t.Fatalf("IDAT = %v, want %v", p.IDAT, want)
	}
	for i := range want {
		if p.IDAT[i] != want[i] {
			t.Errorf("IDAT[%d] = %#x, want %#x", i, p.IDAT[i], want[i])
		}
	}
}

func TestParseRejectsIDATBeforeIHDR(t *testing.T) {
	idat := buildChunk("IDAT", []byte{0x01})
	data := buildPNG(idat)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for IDAT before IHDR")
	}
}

func TestParseRejectsIndexedWithoutPalette(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 3))
	idat := buildChunk("IDAT", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat, iend)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for indexed color type missing PLTE")
	}
}

func TestParseAcceptsIndexedWithPalette(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 3))
	plte := buildChunk("PLTE", []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00})
	idat := buildChunk("IDAT", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, plte, idat, iend)

	p, err := Parse(bytescanner.New(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Palette) != 6 {
		t.Errorf("Palette len = %d, want 6", len(p.Palette))
	}
}

func TestParseRejectsMalformedPLTELength(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 3))
	plte := buildChunk("PLTE", []byte{0xFF, 0x00}) // not a multiple of 3
	data := buildPNG(ihdr, plte)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for PLTE length not a multiple of 3")
	}
}

func TestParseRejectsIENDWithoutIDAT(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 0))
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, iend)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for IEND reached with no IDAT chunks")
	}
}

func TestParseRejectsPLTEAfterIDAT(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 3))
	idat := buildChunk("IDAT", []byte{0x00})
	plte := buildChunk("PLTE", []byte{0xFF, 0x00, 0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat, plte, iend)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for PLTE arriving after IDAT")
	}
}

func TestParseRejectsTrnsAfterIDAT(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 0))
	idat := buildChunk("IDAT", []byte{0x00})
	trns := buildChunk("tRNS", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat, trns, iend)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for tRNS arriving after IDAT")
	}
}

func TestParseCapturesTrns(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 3))
	plte := buildChunk("PLTE", []byte{0xFF, 0x00, 0x00})
	trns := buildChunk("tRNS", []byte{0x80})
	idat := buildChunk("IDAT", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, plte, trns, idat, iend)

	p, err := Parse(bytescanner.New(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Trns) != 1 || p.Trns[0] != 0x80 {
		t.Errorf("Trns = %v, want [0x80]", p.Trns)
	}
}

func TestParseRejectsUnsupportedInterlace(t *testing.T) {
	payload := ihdrPayload(1, 1, 8, 0)
	payload[12] = 1 // Adam7
	ihdr := buildChunk("IHDR", payload)
	data := buildPNG(ihdr)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for interlaced IHDR")
	}
}

func TestParseRejectsUnsupportedColorType(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 1))
	data := buildPNG(ihdr)
	if _, err := Parse(bytescanner.New(data)); err == nil {
		t.Error("expected error for invalid color type")
	}
}

func TestParseSkipsUnknownAncillaryChunk(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 0))
	text := buildChunk("tEXt", []byte("hello"))
	idat := buildChunk("IDAT", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, text, idat, iend)

	p, err := Parse(bytescanner.New(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.IDAT) != 1 {
		t.Errorf("IDAT len = %d, want 1", len(p.IDAT))
	}
}

// TestParseIdempotentSignatureCheck exercises the Testable Property that
// checking the signature twice over the same bytes yields the same
// verdict, by constructing two independent scanners over identical data.
func TestParseIdempotentSignatureCheck(t *testing.T) {
	ihdr := buildChunk("IHDR", ihdrPayload(1, 1, 8, 0))
	idat := buildChunk("IDAT", []byte{0x00})
	iend := buildChunk("IEND", nil)
	data := buildPNG(ihdr, idat, iend)

	p1, err1 := Parse(bytescanner.New(data))
	p2, err2 := Parse(bytescanner.New(data))
	if err1 != nil || err2 != nil {
		t.Fatalf("Parse: err1=%v err2=%v", err1, err2)
	}
	if p1.Header != p2.Header {
		t.Errorf("repeated Parse produced different headers: %+v vs %+v", p1.Header, p2.Header)
	}
}
