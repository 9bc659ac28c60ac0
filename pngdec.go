package pngdec

import (
	"image"
	"image/color"
	"io"

	"github.com/pkg/errors"

	"github.com/Rublue3748/image-parser/internal/bytescanner"
	"github.com/Rublue3748/image-parser/internal/inflate"
	"github.com/Rublue3748/image-parser/internal/pngchunk"
	"github.com/Rublue3748/image-parser/internal/raster"
)

func init() {
	// Registered under a distinct format name from the standard
	// library's own "png" so the two can coexist in the same binary;
	// image.Decode dispatches on the magic prefix regardless of name.
	image.RegisterFormat("png-core", string(pngchunk.Signature[:]), decodeImage, DecodeConfig)
}

// decodeImage adapts Decode to the image.Decode func(io.Reader) (image.Image,
// error) signature RegisterFormat requires; Decode itself returns the more
// specific *image.NRGBA for callers that want to avoid a type assertion.
func decodeImage(r io.Reader) (image.Image, error) {
	return Decode(r)
}

// Errors returned by the decoder. Read, chunk-parsing, inflate and
// scanline failures wrap one of these so callers can match with
// errors.Is after unwrapping. A MaxPixels rejection wraps none of them,
// and a color-conversion failure wraps raster.ErrColorConvert instead.
var (
	ErrNotPNG            = pngchunk.ErrNotPNG
	ErrUnsupportedFormat = pngchunk.ErrUnsupportedFormat
	ErrMalformedChunk    = pngchunk.ErrMalformedChunk
	ErrInflate           = errors.New("pngdec: inflate failed")
	ErrFilter            = errors.New("pngdec: scanline reconstruction failed")
	ErrShortRead         = errors.New("pngdec: failed to read input")
)

// Options configures a decode beyond the zero-value defaults Decode uses.
type Options struct {
	// MaxPixels bounds width*height; a decode that would exceed it fails
	// before any pixel data is allocated. Zero means unbounded.
	MaxPixels int64
}

// Decode reads a PNG image from r and returns it as *image.NRGBA.
func Decode(r io.Reader) (*image.NRGBA, error) {
	return DecodeWithOptions(r, Options{})
}

// DecodeWithOptions reads a PNG image from r, honoring opts.
func DecodeWithOptions(r io.Reader, opts Options) (*image.NRGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(ErrShortRead, err.Error())
	}
	return decodeBytes(data, opts)
}

// DecodeConfig returns the color model and dimensions of a PNG image
// without inflating or reconstructing any pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return image.Config{}, errors.Wrap(ErrShortRead, err.Error())
	}
	s := bytescanner.New(data)
	parsed, err := pngchunk.Parse(s)
	if err != nil {
		return image.Config{}, errors.WithMessage(err, "pngdec: parsing chunks")
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(parsed.Header.Width),
		Height:     int(parsed.Header.Height),
	}, nil
}

func decodeBytes(data []byte, opts Options) (*image.NRGBA, error) {
	s := bytescanner.New(data)
	parsed, err := pngchunk.Parse(s)
	if err != nil {
		return nil, errors.WithMessage(err, "pngdec: parsing chunks")
	}

	width := int(parsed.Header.Width)
	height := int(parsed.Header.Height)
	if opts.MaxPixels > 0 && int64(width)*int64(height) > opts.MaxPixels {
		return nil, errors.Errorf("pngdec: %dx%d exceeds MaxPixels %d", width, height, opts.MaxPixels)
	}

	raw, err := inflate.Inflate(parsed.IDAT)
	if err != nil {
		return nil, errors.Wrap(ErrInflate, err.Error())
	}

	bpp := parsed.Header.Channels()
	unfiltered, err := raster.Unfilter(raw, width, height, bpp)
	if err != nil {
		return nil, errors.Wrap(ErrFilter, err.Error())
	}

	rgba, err := raster.ToRGBA(parsed.Header, unfiltered, parsed.Palette, parsed.Trns)
	if err != nil {
		return nil, errors.WithMessage(err, "pngdec: color conversion")
	}

	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	return img, nil
}
