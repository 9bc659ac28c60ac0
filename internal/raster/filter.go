// Package raster reverses PNG per-scanline filtering and converts the
// reconstructed bytes into RGBA pixels.
package raster

import "github.com/pkg/errors"

// Filter identifies one of the five per-scanline filter types.
type Filter uint8

const (
	FilterNone Filter = iota
	FilterSub
	FilterUp
	FilterAverage
	FilterPaeth
)

// ErrUnfilter is returned when the inflated byte stream cannot be
// reshaped into the scanlines the header promises.
var ErrUnfilter = errors.New("raster: scanline reconstruction failed")

// Unfilter reverses PNG's per-scanline filtering over raw, a flat byte
// stream of (1 filter-type byte + stride data bytes) per row, where bpp
// is the number of bytes per complete pixel (channels, since bit depth
// is always 8 in this decoder). It returns the reconstructed image data
// with the filter-type bytes stripped, width*height*bpp bytes in total.
func Unfilter(raw []byte, width, height, bpp int) ([]byte, error) {
	stride := width * bpp
	rowSize := stride + 1
	if len(raw) != rowSize*height {
		return nil, errors.Wrapf(ErrUnfilter, "inflated length %d, want %d for %dx%d at %d bytes/pixel", len(raw), rowSize*height, width, height, bpp)
	}

	out := make([]byte, stride*height)
	var prev []byte
	for y := 0; y < height; y++ {
		rowStart := y * rowSize
		ft := Filter(raw[rowStart])
		src := raw[rowStart+1 : rowStart+rowSize]
		dst := out[y*stride : (y+1)*stride]

		switch ft {
		case FilterNone:
			copy(dst, src)
		case FilterSub:
			for i := 0; i < stride; i++ {
				var a byte
				if i >= bpp {
					a = dst[i-bpp]
				}
				dst[i] = src[i] + a
			}
		case FilterUp:
			for i := 0; i < stride; i++ {
				var b byte
				if prev != nil {
					b = prev[i]
				}
				dst[i] = src[i] + b
			}
		case FilterAverage:
			for i := 0; i < stride; i++ {
				var a, b int
				if i >= bpp {
					a = int(dst[i-bpp])
				}
				if prev != nil {
					b = int(prev[i])
				}
				dst[i] = src[i] + byte((a+b)/2)
			}
		case FilterPaeth:
			for i := 0; i < stride; i++ {
				var a, b, c int
				if i >= bpp {
					a = int(dst[i-bpp])
				}
				if prev != nil {
					b = int(prev[i])
				}
				if i >= bpp && prev != nil {
					c = int(prev[i-bpp])
				}
				dst[i] = src[i] + byte(paeth(a, b, c))
			}
		default:
			return nil, errors.Wrapf(ErrUnfilter, "row %d: unknown filter type %d", y, ft)
		}
		prev = dst
	}
	return out, nil
}

// paeth is the PNG paeth predictor: it picks whichever of the three
// neighbors (left, above, upper-left) is closest to a linear estimate
// of the current sample, with ties broken in the order a, b, c.
func paeth(a, b, c int) int {
	p := a + b - c
	pa := abs(p - a)
	pb := abs(p - b)
	pc := abs(p - c)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
