// Package pngchunk parses the chunk-framed outer structure of a PNG
// file: the 8-byte signature, the IHDR header, an optional palette and
// transparency table, and the concatenated IDAT payload the inflater
// consumes next.
package pngchunk

import (
	"github.com/pkg/errors"

	"github.com/Rublue3748/image-parser/internal/bytescanner"
)

// Signature is the fixed 8-byte sequence every PNG file starts with.
var Signature = [8]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// Sentinel error kinds.
var (
	ErrNotPNG          = errors.New("pngchunk: not a PNG file")
	ErrUnsupportedFormat = errors.New("pngchunk: unsupported format")
	ErrMalformedChunk  = errors.New("pngchunk: malformed chunk")
)

// ColorType enumerates the PNG color models this decoder accepts.
type ColorType uint8

const (
	ColorGray       ColorType = 0
	ColorRGB        ColorType = 2
	ColorIndexed    ColorType = 3
	ColorGrayAlpha  ColorType = 4
	ColorRGBA       ColorType = 6
)

// Header is the interpreted IHDR record.
type Header struct {
	Width            uint32
	Height           uint32
	BitDepth         uint8
	ColorType        ColorType
	CompressionMethod uint8
	FilterMethod     uint8
	InterlaceMethod  uint8
}

// Channels returns the number of channels per pixel implied by the
// header's color type.
func (h Header) Channels() int {
	switch h.ColorType {
	case ColorGray, ColorIndexed:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

// Parsed holds everything the chunk parser accumulates over one decode:
// the header, an optional palette (RGB triples), an optional
// transparency table (one alpha byte per palette entry), and the
// concatenation of every IDAT payload in file order.
type Parsed struct {
	Header  Header
	Palette []byte // 3 bytes per entry
	Trns    []byte // 1 byte per entry
	IDAT    []byte
}

// Parse reads the signature and chunk sequence from s, which must be
// positioned at the start of the file. It accumulates IDAT payloads and
// returns once IEND is reached.
func Parse(s *bytescanner.Scanner) (*Parsed, error) {
	if err := checkSignature(s); err != nil {
		return nil, err
	}
	s.SetEndianness(bytescanner.BigEndian)

	var p Parsed
	haveHeader := false
	havePalette := false
	haveIDAT := false

	for {
		length, err := s.ReadU32()
		if err != nil {
			return nil, errors.Wrap(ErrMalformedChunk, "chunk length")
		}
		typeBytes, err := s.ReadBytes(4)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedChunk, "chunk type")
		}
		chunkType := string(typeBytes)

		payload, err := s.ReadBytes(int(length))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedChunk, "chunk %s: payload short by length %d", chunkType, length)
		}
		if _, err := s.ReadBytes(4); err != nil { // CRC, unverified per design
			return nil, errors.Wrapf(ErrMalformedChunk, "chunk %s: missing CRC", chunkType)
		}

		switch chunkType {
		case "IHDR":
			h, err := parseHeader(payload)
			if err != nil {
				return nil, err
			}
			p.Header = h
			haveHeader = true
		case "PLTE":
			if haveIDAT {
				return nil, errors.Wrap(ErrMalformedChunk, "PLTE after IDAT")
			}
			if len(payload)%3 != 0 {
				return nil, errors.Wrapf(ErrMalformedChunk, "PLTE length %d not a multiple of 3", len(payload))
			}
			p.Palette = append([]byte(nil), payload...)
			havePalette = true
		case "tRNS":
			if haveIDAT {
				return nil, errors.Wrap(ErrMalformedChunk, "tRNS after IDAT")
			}
			p.Trns = append([]byte(nil), payload...)
		case "IDAT":
			if !haveHeader {
				return nil, errors.Wrap(ErrMalformedChunk, "IDAT before IHDR")
			}
			p.IDAT = append(p.IDAT, payload...)
			haveIDAT = true
		case "IEND":
			if !haveHeader {
				return nil, errors.Wrap(ErrMalformedChunk, "IEND before IHDR")
			}
			if p.Header.ColorType == ColorIndexed && !havePalette {
				return nil, errors.Wrap(ErrMalformedChunk, "indexed color type requires PLTE")
			}
			if !haveIDAT {
				return nil, errors.Wrap(ErrMalformedChunk, "IEND with no IDAT chunks")
			}
			return &p, nil
		default:
			// Unknown ancillary chunk: skip, already consumed above.
		}
	}
}

// checkSignature verifies the 8-byte PNG magic at the scanner's current
// position. It does not advance the position past what reading the
// signature itself consumes — a prior Seek is unaffected.
func checkSignature(s *bytescanner.Scanner) error {
	got, err := s.ReadBytes(8)
	if err != nil {
		return errors.Wrap(ErrNotPNG, "short read on signature")
	}
	for i, b := range Signature {
		if got[i] != b {
			return ErrNotPNG
		}
	}
	return nil
}

func parseHeader(payload []byte) (Header, error) {
	if len(payload) != 13 {
		return Header{}, errors.Wrapf(ErrMalformedChunk, "IHDR length %d, want 13", len(payload))
	}
	s := bytescanner.New(payload)
	s.SetEndianness(bytescanner.BigEndian)

	width, _ := s.ReadU32()
	height, _ := s.ReadU32()
	bitDepth, _ := s.ReadU8()
	colorType, _ := s.ReadU8()
	compression, _ := s.ReadU8()
	filter, _ := s.ReadU8()
	interlace, _ := s.ReadU8()

	h := Header{
		Width:             width,
		Height:            height,
		BitDepth:          bitDepth,
		ColorType:         ColorType(colorType),
		CompressionMethod: compression,
		FilterMethod:      filter,
		InterlaceMethod:   interlace,
	}

	if h.InterlaceMethod != 0 {
		return Header{}, errors.Wrap(ErrUnsupportedFormat, "Adam7 interlacing is not supported")
	}
	if h.BitDepth != 8 {
		return Header{}, errors.Wrapf(ErrUnsupportedFormat, "bit depth %d not supported (only 8)", h.BitDepth)
	}
	if h.CompressionMethod != 0 {
		return Header{}, errors.Wrapf(ErrUnsupportedFormat, "compression method %d not supported", h.CompressionMethod)
	}
	if h.FilterMethod != 0 {
		return Header{}, errors.Wrapf(ErrUnsupportedFormat, "filter method %d not supported", h.FilterMethod)
	}
	switch h.ColorType {
	case ColorGray, ColorRGB, ColorIndexed, ColorGrayAlpha, ColorRGBA:
	default:
		return Header{}, errors.Wrapf(ErrUnsupportedFormat, "color type %d not supported", colorType)
	}

	return h, nil
}
