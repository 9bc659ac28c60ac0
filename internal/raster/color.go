package raster

import (
	"github.com/pkg/errors"

	"github.com/Rublue3748/image-parser/internal/pngchunk"
)

// ErrColorConvert is returned when reconstructed pixel data cannot be
// converted to RGBA under the header's declared color type.
var ErrColorConvert = errors.New("raster: color conversion failed")

// ToRGBA expands unfiltered pixel data (one sample per channel, 8 bits
// each, in the order filter.go reconstructed it) into 4 bytes of RGBA
// per pixel. palette is a flat RGB triple list (required for
// ColorIndexed); trns supplies per-entry alpha for ColorIndexed or a
// single matched-color key for ColorGray/ColorRGB, and may be nil.
func ToRGBA(h pngchunk.Header, data, palette, trns []byte) ([]byte, error) {
	width, height := int(h.Width), int(h.Height)
	channels := h.Channels()
	if channels == 0 {
		return nil, errors.Wrapf(ErrColorConvert, "unsupported color type %d", h.ColorType)
	}
	if len(data) != width*height*channels {
		return nil, errors.Wrapf(ErrColorConvert, "data length %d, want %d", len(data), width*height*channels)
	}

	out := make([]byte, width*height*4)

	switch h.ColorType {
	case pngchunk.ColorGray:
		trnsGray := -1
		if len(trns) >= 2 {
			trnsGray = int(trns[1])
		}
		for i := 0; i < width*height; i++ {
			g := data[i]
			a := byte(0xff)
			if trnsGray >= 0 && int(g) == trnsGray {
				a = 0
			}
			out[i*4+0] = g
			out[i*4+1] = g
			out[i*4+2] = g
			out[i*4+3] = a
		}

	case pngchunk.ColorRGB:
		var trnsR, trnsG, trnsB int = -1, -1, -1
		if len(trns) >= 6 {
			trnsR, trnsG, trnsB = int(trns[1]), int(trns[3]), int(trns[5])
		}
		for i := 0; i < width*height; i++ {
			r, g, b := data[i*3+0], data[i*3+1], data[i*3+2]
			a := byte(0xff)
			if trnsR >= 0 && int(r) == trnsR && int(g) == trnsG && int(b) == trnsB {
				a = 0
			}
			out[i*4+0] = r
			out[i*4+1] = g
			out[i*4+2] = b
			out[i*4+3] = a
		}

	case pngchunk.ColorIndexed:
		if len(palette) == 0 {
			return nil, errors.Wrap(ErrColorConvert, "indexed color type with no palette")
		}
		entries := len(palette) / 3
		for i := 0; i < width*height; i++ {
			idx := int(data[i])
			if idx >= entries {
				return nil, errors.Wrapf(ErrColorConvert, "palette index %d out of range (%d entries)", idx, entries)
			}
			a := byte(0xff)
			if idx < len(trns) {
				a = trns[idx]
			}
			out[i*4+0] = palette[idx*3+0]
			out[i*4+1] = palette[idx*3+1]
			out[i*4+2] = palette[idx*3+2]
			out[i*4+3] = a
		}

	case pngchunk.ColorGrayAlpha:
		for i := 0; i < width*height; i++ {
			g, a := data[i*2+0], data[i*2+1]
			out[i*4+0] = g
			out[i*4+1] = g
			out[i*4+2] = g
			out[i*4+3] = a
		}

	case pngchunk.ColorRGBA:
		copy(out, data[:width*height*4])

	default:
		return nil, errors.Wrapf(ErrColorConvert, "unsupported color type %d", h.ColorType)
	}

	return out, nil
}
